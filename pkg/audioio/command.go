package audioio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// captureArgs returns the command line that writes raw s16le PCM to stdout.
func captureArgs(cfg Config) (string, []string) {
	rate := strconv.Itoa(cfg.SampleRate)
	ch := strconv.Itoa(cfg.Channels)

	switch cfg.Backend {
	case BackendALSA:
		dev := cfg.Device
		if dev == "" {
			dev = "default"
		}
		return "arecord", []string{"-q", "-D", dev, "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch}
	case BackendCoreAudio:
		dev := cfg.Device
		if dev == "" {
			dev = ":default"
		}
		return "ffmpeg", []string{"-hide_banner", "-loglevel", "error", "-f", "avfoundation", "-i", dev,
			"-ac", ch, "-ar", rate, "-f", "s16le", "-"}
	default:
		dev := cfg.Device
		if dev == "" {
			dev = "default"
		}
		return "ffmpeg", []string{"-hide_banner", "-loglevel", "error", "-f", "pulse", "-i", dev,
			"-ac", ch, "-ar", rate, "-f", "s16le", "-"}
	}
}

// playbackArgs returns the command line that plays raw s16le PCM from stdin.
func playbackArgs(cfg Config) (string, []string) {
	rate := strconv.Itoa(cfg.SampleRate)
	ch := strconv.Itoa(cfg.Channels)

	if cfg.Backend == BackendALSA {
		dev := cfg.Device
		if dev == "" {
			dev = "default"
		}
		return "aplay", []string{"-q", "-D", dev, "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch}
	}
	return "ffplay", []string{"-nodisp", "-autoexit", "-hide_banner", "-loglevel", "error",
		"-f", "s16le", "-ar", rate, "-ch_layout", channelLayout(cfg.Channels), "-i", "-"}
}

func channelLayout(channels int) string {
	if channels == 2 {
		return "stereo"
	}
	return "mono"
}

// commandSource captures audio by reading a recorder process's stdout.
type commandSource struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	reader *bufio.Reader
	closed bool
}

func newCommandSource(cfg Config, logger *slog.Logger) (*commandSource, error) {
	name, _ := captureArgs(cfg)
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrDeviceUnavailable, name, err)
	}
	return &commandSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.source", "backend", cfg.Backend),
	}, nil
}

func (s *commandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.cmd != nil {
		return nil
	}

	name, args := captureArgs(s.cfg)
	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrDeviceUnavailable, name, err)
	}

	s.cmd = cmd
	s.reader = bufio.NewReaderSize(stdout, s.cfg.BufferBytes()*4)
	s.logger.Debug("capture started", "cmd", name, "device", s.cfg.Device)
	return nil
}

func (s *commandSource) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.reader = nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}
	return stopProcess(cmd)
}

func (s *commandSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	r := s.reader
	s.mu.Unlock()

	if r == nil {
		return AudioChunk{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return AudioChunk{}, err
	}

	buf := make([]byte, s.cfg.BufferBytes())
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := io.ReadFull(r, buf)
		done <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		// Killing the recorder unblocks the pending read.
		_ = s.Stop()
		<-done
		return AudioChunk{}, ctx.Err()
	case res := <-done:
		if res.err != nil && !errors.Is(res.err, io.ErrUnexpectedEOF) {
			if errors.Is(res.err, io.EOF) || errors.Is(res.err, io.ErrClosedPipe) {
				return AudioChunk{}, io.EOF
			}
			return AudioChunk{}, fmt.Errorf("read capture: %w", res.err)
		}
		var chunk AudioChunk
		chunk.FromBytes(buf[:res.n-res.n%2], s.cfg.SampleRate, s.cfg.Channels)
		return chunk, nil
	}
}

func (s *commandSource) Config() Config { return s.cfg }

func (s *commandSource) Name() string { return string(s.cfg.Backend) }

func (s *commandSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// commandSink plays audio by writing to a player process's stdin.
type commandSink struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	waitCh chan error
	closed bool
}

func newCommandSink(cfg Config, logger *slog.Logger) (*commandSink, error) {
	name, _ := playbackArgs(cfg)
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrDeviceUnavailable, name, err)
	}
	return &commandSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.sink", "backend", cfg.Backend),
	}, nil
}

func (s *commandSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.cmd != nil {
		return nil
	}

	name, args := playbackArgs(s.cfg)
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %v", ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrDeviceUnavailable, name, err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	s.cmd = cmd
	s.stdin = stdin
	s.waitCh = waitCh
	s.logger.Debug("playback started", "cmd", name, "device", s.cfg.Device)
	return nil
}

func (s *commandSink) Write(ctx context.Context, chunk AudioChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()

	if stdin == nil {
		return io.ErrClosedPipe
	}
	if _, err := stdin.Write(chunk.Bytes()); err != nil {
		return fmt.Errorf("write playback: %w", err)
	}
	return nil
}

func (s *commandSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	stdin := s.stdin
	waitCh := s.waitCh
	s.stdin = nil
	s.mu.Unlock()

	if waitCh == nil {
		return nil
	}
	if stdin != nil {
		_ = stdin.Close()
	}

	select {
	case <-ctx.Done():
		_ = s.Clear()
		return ctx.Err()
	case err := <-waitCh:
		s.mu.Lock()
		s.cmd = nil
		s.waitCh = nil
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("player exited: %w", err)
		}
		return nil
	}
}

func (s *commandSink) Clear() error {
	s.mu.Lock()
	cmd := s.cmd
	stdin := s.stdin
	s.cmd = nil
	s.stdin = nil
	s.waitCh = nil
	s.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func (s *commandSink) Stop() error {
	return s.Clear()
}

func (s *commandSink) Config() Config { return s.cfg }

func (s *commandSink) Name() string { return string(s.cfg.Backend) }

func (s *commandSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Clear()
}

// stopProcess kills cmd and reaps it, giving up after a short grace period.
func stopProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	_ = cmd.Process.Kill()

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		return fmt.Errorf("process %d did not exit", cmd.Process.Pid)
	}
	return nil
}

var (
	_ Source = (*commandSource)(nil)
	_ Sink   = (*commandSink)(nil)
)
