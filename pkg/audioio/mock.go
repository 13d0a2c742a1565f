package audioio

import (
	"context"
	"io"
	"math"
	"sync"
)

// MockSource is an in-memory audio source for tests.
// It replays scripted chunks, then emits silence or a sine wave.
type MockSource struct {
	cfg Config

	mu       sync.Mutex
	running  bool
	closed   bool
	script   []AudioChunk
	pos      int
	eofAfter bool
	startErr error

	phase     float64
	frequency float64
	amplitude float64

	starts int
	stops  int
	reads  int
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave makes the mock emit a sine wave once the script is exhausted.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithScript queues chunks to be returned, in order, before synthetic audio.
func WithScript(chunks ...AudioChunk) MockSourceOption {
	return func(m *MockSource) {
		m.script = append(m.script, chunks...)
	}
}

// WithEOFAfterScript makes Read return io.EOF once the script is exhausted.
func WithEOFAfterScript() MockSourceOption {
	return func(m *MockSource) {
		m.eofAfter = true
	}
}

// WithStartError makes Start fail with err.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// NewMockSource creates a mock source. Without options it emits silence.
func NewMockSource(cfg Config, opts ...MockSourceOption) *MockSource {
	m := &MockSource{cfg: cfg, amplitude: 0.5}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start marks the source running.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	m.starts++
	m.running = true
	return nil
}

// Stop marks the source stopped.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.stops++
	}
	m.running = false
	return nil
}

// Read returns the next scripted or synthetic chunk without waiting.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	if err := ctx.Err(); err != nil {
		return AudioChunk{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return AudioChunk{}, io.EOF
	}
	m.reads++

	if m.pos < len(m.script) {
		c := m.script[m.pos]
		m.pos++
		return c, nil
	}
	if m.eofAfter {
		return AudioChunk{}, io.EOF
	}
	return m.generateChunk(), nil
}

func (m *MockSource) generateChunk() AudioChunk {
	frames := m.cfg.BufferSize()
	samples := make([]int16, frames*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < frames; i++ {
			v := int16(m.amplitude * 32767 * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = v
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return AudioChunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return "mock" }

// Close stops the source permanently.
func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// Running reports whether the source is between Start and Stop.
func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts returns how many times Start succeeded.
func (m *MockSource) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many times a running source was stopped.
func (m *MockSource) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// MockSink is an in-memory sink that records everything written to it.
type MockSink struct {
	cfg Config

	// FlushFunc, if set, replaces the default instant flush.
	FlushFunc func(ctx context.Context) error

	mu       sync.Mutex
	running  bool
	closed   bool
	startErr error
	pending  []int16
	played   []int16
	starts   int
	clears   int
}

// NewMockSink creates a mock sink.
func NewMockSink(cfg Config) *MockSink {
	return &MockSink{cfg: cfg}
}

// WithError makes Start fail with err.
func (m *MockSink) WithError(err error) *MockSink {
	m.startErr = err
	return m
}

// Start marks the sink running.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	m.starts++
	m.running = true
	return nil
}

// Stop marks the sink stopped and drops pending audio.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.pending = nil
	return nil
}

// Write queues a chunk.
func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.running {
		return io.ErrClosedPipe
	}
	m.pending = append(m.pending, chunk.Samples...)
	return nil
}

// Flush moves pending audio to the played buffer.
func (m *MockSink) Flush(ctx context.Context) error {
	if m.FlushFunc != nil {
		if err := m.FlushFunc(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, m.pending...)
	m.pending = nil
	return nil
}

// Clear drops pending audio.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.clears++
	return nil
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return "mock" }

// Close stops the sink permanently.
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// Played returns a copy of all flushed samples.
func (m *MockSink) Played() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.played...)
}

// Running reports whether the sink is between Start and Stop.
func (m *MockSink) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Clears returns how many times Clear was called.
func (m *MockSink) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
