package gradio

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsHandshakeTimeout = 10 * time.Second

// queueMessage is one server message on the Gradio 3 /queue/join socket.
type queueMessage struct {
	Msg     string `json:"msg"`
	Rank    *int   `json:"rank"`
	Success bool   `json:"success"`
	Output  struct {
		Data  []any  `json:"data"`
		Error string `json:"error"`
	} `json:"output"`
}

// predictWS runs a call through the Gradio 3 websocket queue.
func (c *Client) predictWS(ctx context.Context, api string, data []any) ([]any, error) {
	app, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}
	fnIndex, err := app.FnIndex(api)
	if err != nil {
		return nil, err
	}

	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.base.Path + app.APIPrefix + "/queue/join"

	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unavailable(err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg queueMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, unavailable(fmt.Errorf("read queue message: %w", err))
		}

		switch msg.Msg {
		case "send_hash":
			err = conn.WriteJSON(map[string]any{
				"fn_index":     fnIndex,
				"session_hash": c.session,
			})
		case "send_data":
			err = conn.WriteJSON(map[string]any{
				"data":         data,
				"event_data":   nil,
				"fn_index":     fnIndex,
				"session_hash": c.session,
			})
		case "estimation":
			if msg.Rank != nil {
				c.logger.Debug("queued", "api", api, "rank", *msg.Rank)
			}
		case "queue_full":
			return nil, ErrQueueFull
		case "process_completed":
			if !msg.Success {
				return nil, &AppError{Endpoint: "/" + api, Message: msg.Output.Error}
			}
			return msg.Output.Data, nil
		}
		if err != nil {
			return nil, unavailable(fmt.Errorf("write queue message: %w", err))
		}
	}
}
