package tts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/teslashibe/go-parrot/pkg/audioio"
	"github.com/teslashibe/go-parrot/pkg/tts"
)

// fakeApplio serves the Gradio 4 surface of an Applio app. When local is
// set it writes output files where the request says, as an Applio sharing
// our filesystem would; otherwise it only serves them for download.
type fakeApplio struct {
	t      *testing.T
	local  bool
	failOn string

	mu    sync.Mutex
	calls map[string][]any
	files map[string][]byte
}

func newFakeApplio(t *testing.T, local bool) *fakeApplio {
	return &fakeApplio{
		t:     t,
		local: local,
		calls: make(map[string][]any),
		files: make(map[string][]byte),
	}
}

func (f *fakeApplio) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"5.23.1","protocol":"sse_v3","api_prefix":"/gradio_api",
			"dependencies":[{"id":0,"api_name":"run_tts_script"},{"id":1,"api_name":"run_infer_script"}]}`)
	})
	// No /info: the client falls back to its built-in signatures.
	for _, api := range []string{"run_tts_script", "run_infer_script"} {
		mux.HandleFunc("/gradio_api/call/"+api, f.submit(api))
		mux.HandleFunc("/gradio_api/call/"+api+"/evt", f.result(api))
	}
	mux.HandleFunc("/gradio_api/", func(w http.ResponseWriter, r *http.Request) {
		const prefix = "/gradio_api/file="
		if len(r.URL.Path) <= len(prefix) || r.URL.Path[:len(prefix)] != prefix {
			http.NotFound(w, r)
			return
		}
		f.mu.Lock()
		data, ok := f.files[r.URL.Path[len(prefix):]]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	})
	return mux
}

func (f *fakeApplio) submit(api string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data []any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("decode %s: %v", api, err)
		}
		f.mu.Lock()
		f.calls[api] = body.Data
		f.mu.Unlock()
		fmt.Fprint(w, `{"event_id":"evt"}`)
	}
}

func (f *fakeApplio) result(api string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if api == f.failOn {
			fmt.Fprint(w, "event: error\ndata: \"Model file not found\"\n\n")
			return
		}

		f.mu.Lock()
		data := f.calls[api]
		f.mu.Unlock()

		var outputs []string
		switch api {
		case "run_tts_script":
			outputs = []string{data[11].(string), data[12].(string)}
		case "run_infer_script":
			outputs = []string{data[8].(string)}
		}

		wav := audioio.WAVBytes(audioio.AudioChunk{
			Samples:    make([]int16, 4410),
			SampleRate: 44100,
			Channels:   1,
		})
		for _, p := range outputs {
			f.mu.Lock()
			f.files[p] = wav
			f.mu.Unlock()
			if f.local {
				if err := os.WriteFile(p, wav, 0o644); err != nil {
					f.t.Errorf("write %s: %v", p, err)
				}
			}
		}

		last := outputs[len(outputs)-1]
		fmt.Fprintf(w, "event: complete\ndata: [%q, {\"path\": %q}]\n\n", "Conversion completed.", last)
	}
}

func (f *fakeApplio) called(api string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.calls[api]
	return ok
}

func newApplio(t *testing.T, srv *httptest.Server) (*tts.Applio, string, string) {
	t.Helper()
	dir := t.TempDir()
	ttsPath := filepath.Join(dir, "tts_output.wav")
	rvcPath := filepath.Join(dir, "tts_rvc_output.wav")

	a, err := tts.NewApplio(
		tts.WithBaseURL(srv.URL+"/"),
		tts.WithModel("logs/parrot/parrot.pth", "logs/parrot/parrot.index"),
		tts.WithPitch(4),
		tts.WithOutputPaths(ttsPath, rvcPath),
	)
	if err != nil {
		t.Fatalf("NewApplio: %v", err)
	}
	return a, ttsPath, rvcPath
}

func TestApplioPipelineLocal(t *testing.T) {
	app := newFakeApplio(t, true)
	srv := httptest.NewServer(app.handler())
	defer srv.Close()

	a, ttsPath, rvcPath := newApplio(t, srv)
	p := tts.NewPipeline(a, a)

	res, err := p.Synthesize(context.Background(), "Polly wants a cracker")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Path != rvcPath {
		t.Errorf("expected %s, got %s", rvcPath, res.Path)
	}
	if res.Format.SampleRate != 44100 || res.Duration.Milliseconds() != 100 {
		t.Errorf("unexpected format %+v duration %v", res.Format, res.Duration)
	}

	data := app.calls["run_tts_script"]
	if data[1] != "Polly wants a cracker" || data[2] != "en-US-AndrewNeural" {
		t.Errorf("text and voice not passed: %v", data[:3])
	}
	if data[4] != float64(4) || data[11] != ttsPath || data[12] != rvcPath {
		t.Errorf("pitch or output paths not passed: %v", data)
	}
	if data[13] != "logs/parrot/parrot.pth" {
		t.Errorf("model not passed: %v", data[13])
	}
	if app.called("run_infer_script") {
		t.Error("converting the fresh speech file should reuse the job output")
	}
}

func TestApplioPipelineRemote(t *testing.T) {
	app := newFakeApplio(t, false)
	srv := httptest.NewServer(app.handler())
	defer srv.Close()

	a, _, rvcPath := newApplio(t, srv)
	res, err := tts.NewPipeline(a, a).Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, err := os.Stat(rvcPath); err != nil {
		t.Fatalf("converted file not downloaded: %v", err)
	}
	if res.Format.Channels != 1 {
		t.Errorf("unexpected format %+v", res.Format)
	}
}

func TestApplioSpeakRemoteLogsUnknownFormat(t *testing.T) {
	app := newFakeApplio(t, false)
	srv := httptest.NewServer(app.handler())
	defer srv.Close()

	var logs bytes.Buffer
	dir := t.TempDir()
	a, err := tts.NewApplio(
		tts.WithBaseURL(srv.URL+"/"),
		tts.WithModel("logs/parrot/parrot.pth", ""),
		tts.WithOutputPaths(filepath.Join(dir, "tts.wav"), filepath.Join(dir, "rvc.wav")),
		tts.WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	if err != nil {
		t.Fatalf("NewApplio: %v", err)
	}

	res, err := a.Speak(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Speak should succeed without a local speech file: %v", err)
	}
	if res.Format.SampleRate != 0 {
		t.Errorf("format should be unknown, got %+v", res.Format)
	}
	if !strings.Contains(logs.String(), "speech file format unknown") {
		t.Errorf("missing speech file not logged:\n%s", logs.String())
	}
}

func TestApplioConvertOtherInput(t *testing.T) {
	app := newFakeApplio(t, true)
	srv := httptest.NewServer(app.handler())
	defer srv.Close()

	a, _, rvcPath := newApplio(t, srv)
	input := filepath.Join(t.TempDir(), "recording.wav")

	res, err := a.Convert(context.Background(), input)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Path != rvcPath {
		t.Errorf("expected %s, got %s", rvcPath, res.Path)
	}
	if !app.called("run_infer_script") {
		t.Fatal("expected /run_infer_script")
	}
	if data := app.calls["run_infer_script"]; data[7] != input {
		t.Errorf("input path not passed: %v", data[7])
	}
}

func TestApplioFailure(t *testing.T) {
	app := newFakeApplio(t, true)
	app.failOn = "run_tts_script"
	srv := httptest.NewServer(app.handler())
	defer srv.Close()

	a, _, _ := newApplio(t, srv)
	_, err := tts.NewPipeline(a, a).Synthesize(context.Background(), "hello")

	var se *tts.SynthesisError
	if !errors.As(err, &se) || se.Stage != tts.StageTTS {
		t.Fatalf("expected tts stage error, got %v", err)
	}
	var pe *tts.ProviderError
	if !errors.As(err, &pe) || pe.Provider != "applio" {
		t.Errorf("expected applio provider error, got %v", err)
	}
}

func TestApplioHealth(t *testing.T) {
	app := newFakeApplio(t, true)
	srv := httptest.NewServer(app.handler())

	a, _, _ := newApplio(t, srv)
	if err := a.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}

	srv.Close()
	a, _, _ = newApplio(t, srv)
	if err := a.Health(context.Background()); err == nil {
		t.Error("expected error for stopped app")
	}
}

func TestNewApplioValidation(t *testing.T) {
	if _, err := tts.NewApplio(); !errors.Is(err, tts.ErrNoModel) {
		t.Errorf("expected ErrNoModel, got %v", err)
	}
}
