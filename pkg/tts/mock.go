package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Speaker and Converter for testing.
// All methods can be customized via function fields.
type Mock struct {
	// SpeakFunc is called when Speak is invoked.
	// If nil, returns a result at "mock_tts.wav" without touching disk.
	SpeakFunc func(ctx context.Context, text string) (*AudioResult, error)

	// ConvertFunc is called when Convert is invoked.
	// If nil, returns a result at "mock_rvc.wav".
	ConvertFunc func(ctx context.Context, inputPath string) (*AudioResult, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
// Text holds the spoken text for Speak and the input path for Convert.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock creates a new mock with sensible defaults.
func NewMock() *Mock {
	return &Mock{}
}

// Speak calls SpeakFunc and records the call.
func (m *Mock) Speak(ctx context.Context, text string) (*AudioResult, error) {
	m.recordCall("Speak", text)
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &AudioResult{
		Path:      "mock_tts.wav",
		Format:    AudioFormat{SampleRate: 24000, Channels: 1, BitDepth: 16},
		CharCount: len(text),
		Duration:  time.Duration(len(text)) * 60 * time.Millisecond,
		LatencyMs: 10,
	}, nil
}

// Convert calls ConvertFunc and records the call.
func (m *Mock) Convert(ctx context.Context, inputPath string) (*AudioResult, error) {
	m.recordCall("Convert", inputPath)
	if m.ConvertFunc != nil {
		return m.ConvertFunc(ctx, inputPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &AudioResult{
		Path:      "mock_rvc.wav",
		Format:    AudioFormat{SampleRate: 44100, Channels: 1, BitDepth: 16},
		LatencyMs: 20,
	}, nil
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", "")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) recordCall(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Text:   text,
		Time:   time.Now(),
	})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of calls to a specific method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock whose stages and health check all fail with err.
func WithError(err error) *Mock {
	return &Mock{
		SpeakFunc: func(ctx context.Context, text string) (*AudioResult, error) {
			return nil, err
		},
		ConvertFunc: func(ctx context.Context, inputPath string) (*AudioResult, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// WithLatency wraps a mock to add artificial latency to each stage.
// The delay is abandoned when the context ends.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	speak, convert := m.Speak, m.Convert
	wait := func(ctx context.Context) error {
		select {
		case <-time.After(delay):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return &Mock{
		SpeakFunc: func(ctx context.Context, text string) (*AudioResult, error) {
			if err := wait(ctx); err != nil {
				return nil, err
			}
			return speak(ctx, text)
		},
		ConvertFunc: func(ctx context.Context, inputPath string) (*AudioResult, error) {
			if err := wait(ctx); err != nil {
				return nil, err
			}
			return convert(ctx, inputPath)
		},
		HealthFunc: m.HealthFunc,
	}
}

// Verify Mock implements both stages at compile time.
var (
	_ Speaker   = (*Mock)(nil)
	_ Converter = (*Mock)(nil)
)
