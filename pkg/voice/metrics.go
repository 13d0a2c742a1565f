package voice

import (
	"sync"
	"time"
)

// Metrics tracks latency at each stage of one turn.
// Latencies are measured from the moment speech ends (user stops talking).
type Metrics struct {
	Turn int `json:"turn"`

	// Timestamps for key events
	SpeechEndTime    time.Time `json:"speech_end"`
	TranscriptTime   time.Time `json:"transcript"`
	ReplyTime        time.Time `json:"reply"`
	AudioReadyTime   time.Time `json:"audio_ready"`
	ResponseDoneTime time.Time `json:"response_done"`

	// Per-stage durations
	UtteranceLength time.Duration `json:"utterance_ns"`
	ASRLatency      time.Duration `json:"asr_ns"`
	LLMLatency      time.Duration `json:"llm_ns"`
	TTSLatency      time.Duration `json:"tts_ns"`
	PlaybackTime    time.Duration `json:"playback_ns"`

	// ResponseLatency is speech end to the start of playback, the silence
	// the user sits through. TotalLatency runs to the end of playback.
	ResponseLatency time.Duration `json:"response_ns"`
	TotalLatency    time.Duration `json:"total_ns"`

	// Failed is set when the turn was abandoned.
	Failed bool `json:"failed"`
}

// MetricsCollector collects latency metrics during a conversation turn.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics // recent completed turns for averaging

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
	}
}

// OnUpdate sets a callback that fires whenever a turn ends.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Begin resets the collector for a new turn.
func (m *MetricsCollector) Begin(turn int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{Turn: turn}
}

// MarkSpeechEnd records when the user stopped speaking and how long they spoke.
// This is the reference point for all latency measurements.
func (m *MetricsCollector) MarkSpeechEnd(at time.Time, length time.Duration) {
	if at.IsZero() {
		at = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.SpeechEndTime = at
	m.current.UtteranceLength = length
}

// MarkTranscript records when transcription completed.
func (m *MetricsCollector) MarkTranscript() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TranscriptTime = time.Now()
	m.current.ASRLatency = since(m.current.SpeechEndTime, m.current.TranscriptTime)
}

// MarkReply records when the reply text was generated.
func (m *MetricsCollector) MarkReply() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ReplyTime = time.Now()
	m.current.LLMLatency = since(m.current.TranscriptTime, m.current.ReplyTime)
}

// MarkAudioReady records when the voiced reply was ready to play.
func (m *MetricsCollector) MarkAudioReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.AudioReadyTime = time.Now()
	m.current.TTSLatency = since(m.current.ReplyTime, m.current.AudioReadyTime)
	m.current.ResponseLatency = since(m.current.SpeechEndTime, m.current.AudioReadyTime)
}

// MarkResponseDone records when playback finished and archives the turn.
func (m *MetricsCollector) MarkResponseDone() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ResponseDoneTime = time.Now()
	m.current.PlaybackTime = since(m.current.AudioReadyTime, m.current.ResponseDoneTime)
	m.current.TotalLatency = since(m.current.SpeechEndTime, m.current.ResponseDoneTime)
	m.archive()
	return m.current
}

// MarkFailed records that the turn was abandoned. Failed turns are not
// included in averages.
func (m *MetricsCollector) MarkFailed() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Failed = true
	m.notify()
	return m.current
}

// Current returns the current metrics snapshot.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Average returns average metrics over recent completed turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.ASRLatency += h.ASRLatency
		avg.LLMLatency += h.LLMLatency
		avg.TTSLatency += h.TTSLatency
		avg.PlaybackTime += h.PlaybackTime
		avg.ResponseLatency += h.ResponseLatency
		avg.TotalLatency += h.TotalLatency
	}

	n := time.Duration(len(m.history))
	avg.ASRLatency /= n
	avg.LLMLatency /= n
	avg.TTSLatency /= n
	avg.PlaybackTime /= n
	avg.ResponseLatency /= n
	avg.TotalLatency /= n

	return avg
}

// archive must be called with mutex held.
func (m *MetricsCollector) archive() {
	m.history = append(m.history, m.current)
	if len(m.history) > 100 {
		m.history = m.history[1:]
	}
	m.notify()
}

// notify calls the update callback if set.
// Must be called with mutex held.
func (m *MetricsCollector) notify() {
	if m.onUpdate != nil {
		metrics := m.current
		go m.onUpdate(metrics)
	}
}

// FormatLatency returns a formatted string of the turn's latencies.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.ASRLatency) + " ASR | " +
		formatDuration(m.LLMLatency) + " LLM | " +
		formatDuration(m.TTSLatency) + " TTS | " +
		formatDuration(m.PlaybackTime) + " PLAY | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func since(from, to time.Time) time.Duration {
	if from.IsZero() {
		return 0
	}
	return to.Sub(from)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
