package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-parrot/pkg/audioio"
	"github.com/teslashibe/go-parrot/pkg/inference"
	"github.com/teslashibe/go-parrot/pkg/memory"
	"github.com/teslashibe/go-parrot/pkg/stt"
	"github.com/teslashibe/go-parrot/pkg/tts"
)

// syncBuffer is written by the loop goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ApplioPTHPath = "voice.pth"
	cfg.HistoryEnabled = true
	cfg.HistoryDir = t.TempDir()
	cfg.User = "alice"
	cfg.ListenTimeout = time.Second
	cfg.MaxUtterance = time.Second
	return cfg
}

// fakeSynthesizer writes short WAV files like Applio would.
func fakeSynthesizer(t *testing.T) *tts.Pipeline {
	t.Helper()
	dir := t.TempDir()
	write := func(name string, rate int) string {
		path := filepath.Join(dir, name)
		chunk := audioio.AudioChunk{Samples: make([]int16, rate/10), SampleRate: rate, Channels: 1}
		if err := audioio.WriteWAVFile(path, chunk); err != nil {
			t.Fatal(err)
		}
		return path
	}

	m := tts.NewMock()
	m.SpeakFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		return &tts.AudioResult{Path: write("tts.wav", 24000), CharCount: len(text)}, nil
	}
	m.ConvertFunc = func(ctx context.Context, input string) (*tts.AudioResult, error) {
		return &tts.AudioResult{Path: write("rvc.wav", 44100)}, nil
	}
	return tts.NewPipeline(m, m, tts.WithPipelineLogger(quietLogger()))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions(t *testing.T, out io.Writer, heard string, llm inference.Provider) []Option {
	return []Option{
		WithLogger(quietLogger()),
		WithOutput(out),
		WithRecognizer(stt.NewMock(heard)),
		WithProvider(llm),
		WithSynthesizer(fakeSynthesizer(t)),
		WithAudio(
			audioio.NewMockSource(audioio.DefaultConfig(), audioio.WithSineWave(440, 0.5)),
			audioio.NewMockSink(audioio.DefaultOutputConfig()),
		),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ApplioPTHPath = ""

	_, err := New(cfg, WithLogger(quietLogger()))
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "ApplioPTHPath" {
		t.Fatalf("expected ConfigError for ApplioPTHPath, got %v", err)
	}
}

func TestConversationIsSavedOnStop(t *testing.T) {
	cfg := testConfig(t)
	out := &syncBuffer{}
	llm := inference.NewMock("hi there")

	a, err := New(cfg, testOptions(t, out, "hello", llm)...)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer a.Shutdown(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	history := a.Loop().Session().History
	waitFor(t, func() bool { return history.Len() >= 2 })
	a.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	data, err := os.ReadFile(memory.NewJSONStore(cfg.HistoryDir).Path("alice"))
	if err != nil {
		t.Fatalf("history not saved: %v", err)
	}
	var doc map[string][]memory.Turn
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	turns := doc["alice"]
	if len(turns) < 2 || turns[0].Content != "hello" || turns[1].Content != "hi there" {
		t.Errorf("unexpected saved history %+v", turns)
	}

	text := out.String()
	if !strings.Contains(text, "You: hello") || !strings.Contains(text, "Assistant: hi there") {
		t.Errorf("transcript not printed:\n%s", text)
	}
	if llm.CallCount("Health") != 1 {
		t.Errorf("expected one health check, got %d", llm.CallCount("Health"))
	}
}

func TestStopPhraseEndsRun(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, testOptions(t, io.Discard, "Exit.", inference.NewMock())...)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown(context.Background())

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := a.Loop().Session().History.Len(); n != 0 {
		t.Errorf("stop phrase should not be recorded, history has %d turns", n)
	}
}

func TestInitFailsWhenServiceUnreachable(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, testOptions(t, io.Discard, "hello", inference.WithError(inference.ErrModelNotFound))...)
	if err != nil {
		t.Fatal(err)
	}

	err = a.Init(context.Background())
	if !errors.Is(err, ErrStartup) || !errors.Is(err, inference.ErrModelNotFound) {
		t.Fatalf("expected startup failure wrapping the provider error, got %v", err)
	}
	if a.Loop() != nil {
		t.Error("loop should not be built after a failed health check")
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown after failed Init: %v", err)
	}
}

func TestInitFailsOnCorruptHistory(t *testing.T) {
	cfg := testConfig(t)
	path := memory.NewJSONStore(cfg.HistoryDir).Path(cfg.User)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := New(cfg, testOptions(t, io.Discard, "hello", inference.NewMock())...)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Init(context.Background()); !errors.Is(err, memory.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestRunBeforeInit(t *testing.T) {
	a, err := New(testConfig(t), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Run(context.Background()); err == nil {
		t.Error("expected error running before Init")
	}
}

func TestDashboardStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.DashboardEnabled = true
	cfg.DashboardAddr = "127.0.0.1:0"

	a, err := New(cfg, testOptions(t, io.Discard, "hello", inference.NewMock("hi there"))...)
	if err != nil {
		t.Fatal(err)
	}
	if a.Dashboard() == nil {
		t.Fatal("dashboard not created")
	}
	if err := a.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	waitFor(t, func() bool { return a.Loop().Session().Turns() >= 1 })

	resp, err := a.Dashboard().App().Test(httptest.NewRequest("POST", "/api/stop", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 202 {
		t.Fatalf("stop returned %d", resp.StatusCode)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after dashboard stop")
	}
}
