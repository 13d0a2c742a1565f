package audioio

import (
	"fmt"
	"log/slog"
	"runtime"
)

// NewSource creates an input source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg.Backend = resolveBackend(cfg.Backend)
	logger.Info("creating audio source",
		"backend", cfg.Backend,
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg), nil
	case BackendALSA, BackendCoreAudio, BackendFFmpeg:
		return newCommandSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// NewSink creates an output sink with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg.Backend = resolveBackend(cfg.Backend)
	logger.Info("creating audio sink",
		"backend", cfg.Backend,
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockSink(cfg), nil
	case BackendALSA, BackendCoreAudio, BackendFFmpeg:
		return newCommandSink(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

func resolveBackend(b Backend) Backend {
	if b == "" || b == BackendAuto {
		return detectBestBackend()
	}
	return b
}

// detectBestBackend returns the best available backend for the current platform.
func detectBestBackend() Backend {
	switch runtime.GOOS {
	case "linux":
		return BackendALSA
	case "darwin":
		return BackendCoreAudio
	default:
		return BackendFFmpeg
	}
}

// AvailableBackends returns the backends usable on this platform.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock, BackendFFmpeg}

	switch runtime.GOOS {
	case "linux":
		backends = append(backends, BackendALSA)
	case "darwin":
		backends = append(backends, BackendCoreAudio)
	}

	return backends
}
