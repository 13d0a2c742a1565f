package gradio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxEventSize bounds a single SSE data line.
const maxEventSize = 4 << 20

// predictSSE runs a call through POST /call/{api} and reads the result
// from GET /call/{api}/{event_id}.
func (c *Client) predictSSE(ctx context.Context, api string, data []any) ([]any, error) {
	prefix := c.apiPrefix(ctx)

	eventID, err := c.submit(ctx, c.endpointURL(prefix, "call", api), data)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("job submitted", "api", api, "event_id", eventID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(prefix, "call", api, eventID), nil)
	if err != nil {
		return nil, fmt.Errorf("gradio: create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}

	out, err := readEvents(resp.Body, api)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return out, err
}

func (c *Client) submit(ctx context.Context, rawURL string, data []any) (string, error) {
	body, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return "", fmt.Errorf("gradio: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gradio: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrEndpointNotFound, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		return "", httpError(resp)
	}

	var ack struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil || ack.EventID == "" {
		return "", fmt.Errorf("%w: no event_id in submit reply", ErrProtocol)
	}
	return ack.EventID, nil
}

// readEvents consumes an SSE body until a complete or error event.
func readEvents(r io.Reader, api string) ([]any, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxEventSize)

	var (
		event string
		data  strings.Builder
	)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event == "" && data.Len() == 0 {
				continue
			}
			out, done, err := dispatch(event, data.String(), api)
			if done || err != nil {
				return out, err
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, unavailable(err)
	}

	// A final event may arrive without its trailing blank line.
	if event != "" {
		if out, done, err := dispatch(event, data.String(), api); done || err != nil {
			return out, err
		}
	}
	return nil, fmt.Errorf("%w: stream ended without a result", ErrProtocol)
}

func dispatch(event, data, api string) (out []any, done bool, err error) {
	switch event {
	case "complete":
		if err := json.Unmarshal([]byte(data), &out); err != nil {
			return nil, true, fmt.Errorf("%w: decode result: %v", ErrProtocol, err)
		}
		return out, true, nil
	case "error":
		return nil, true, &AppError{Endpoint: "/" + api, Message: errorMessage(data)}
	}
	// generating, heartbeat and unknown events carry nothing final.
	return nil, false, nil
}

// errorMessage extracts a readable message from an error event payload,
// which is null, a JSON string, or an object.
func errorMessage(data string) string {
	data = strings.TrimSpace(data)
	if data == "" || data == "null" {
		return ""
	}
	var s string
	if json.Unmarshal([]byte(data), &s) == nil {
		return s
	}
	var obj struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(data), &obj) == nil {
		if obj.Error != "" {
			return obj.Error
		}
		if obj.Message != "" {
			return obj.Message
		}
	}
	return data
}
