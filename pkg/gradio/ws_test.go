package gradio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
)

// queueServer emulates a Gradio 3 app: /config plus the /queue/join socket.
func queueServer(t *testing.T, final map[string]any) (*httptest.Server, chan map[string]any) {
	t.Helper()
	received := make(chan map[string]any, 4)
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"3.50.2","dependencies":[{"api_name":false},{"api_name":"run_tts_script"}]}`)
	})
	mux.HandleFunc("/queue/join", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteJSON(map[string]any{"msg": "send_hash"})
		var hash map[string]any
		if err := conn.ReadJSON(&hash); err != nil {
			return
		}
		received <- hash

		conn.WriteJSON(map[string]any{"msg": "estimation", "rank": 0, "queue_size": 1})
		conn.WriteJSON(map[string]any{"msg": "send_data"})
		var data map[string]any
		if err := conn.ReadJSON(&data); err != nil {
			return
		}
		received <- data

		conn.WriteJSON(map[string]any{"msg": "process_starts"})
		conn.WriteJSON(final)
	})
	return httptest.NewServer(mux), received
}

func TestPredictWS(t *testing.T) {
	srv, received := queueServer(t, map[string]any{
		"msg":     "process_completed",
		"success": true,
		"output":  map[string]any{"data": []any{"ok", map[string]any{"name": "/tmp/tts.wav", "is_file": true}}},
	})
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	out, err := c.Predict(context.Background(), "/run_tts_script", []any{"hello"})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(out) != 2 || out[0] != "ok" {
		t.Fatalf("unexpected output %v", out)
	}
	if ref, ok := AsFile(out[1]); !ok || ref.Path != "/tmp/tts.wav" {
		t.Errorf("unexpected file ref %+v", ref)
	}

	hash := <-received
	if hash["fn_index"] != float64(1) {
		t.Errorf("expected fn_index 1, got %v", hash["fn_index"])
	}
	if hash["session_hash"] != c.Session() {
		t.Errorf("expected session hash %s, got %v", c.Session(), hash["session_hash"])
	}

	data := <-received
	args, _ := data["data"].([]any)
	if len(args) != 1 || args[0] != "hello" {
		t.Errorf("unexpected data payload %v", data["data"])
	}
}

func TestPredictWSFailure(t *testing.T) {
	srv, _ := queueServer(t, map[string]any{
		"msg":     "process_completed",
		"success": false,
		"output":  map[string]any{"error": "CUDA out of memory"},
	})
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithProtocol(ProtocolWebSocket))
	_, err := c.Predict(context.Background(), "run_tts_script", nil)

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Message != "CUDA out of memory" {
		t.Errorf("expected AppError with message, got %v", err)
	}
}

func TestPredictWSQueueFull(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"3.41.0","dependencies":[{"api_name":"x"}]}`)
	})
	mux.HandleFunc("/queue/join", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]any{"msg": "queue_full"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.Predict(context.Background(), "x", nil); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestPredictWSUnknownEndpoint(t *testing.T) {
	srv, _ := queueServer(t, nil)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.Predict(context.Background(), "missing", nil); !errors.Is(err, ErrEndpointNotFound) {
		t.Errorf("expected ErrEndpointNotFound, got %v", err)
	}
}
