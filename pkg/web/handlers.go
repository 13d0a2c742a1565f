package web

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-parrot/pkg/hub"
	"github.com/teslashibe/go-parrot/pkg/voice"
)

// MetricsResponse is the body of GET /api/metrics.
type MetricsResponse struct {
	Last    *voice.Metrics `json:"last,omitempty"`
	Average *voice.Metrics `json:"average,omitempty"`
}

// handleStatus returns the current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

// handleGetConversation returns recent conversation
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	s.conversationMu.RLock()
	defer s.conversationMu.RUnlock()
	return c.JSON(s.conversation)
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	s.stateMu.RLock()
	mc := s.metrics
	last := s.state.LastMetrics
	s.stateMu.RUnlock()

	resp := MetricsResponse{Last: last}
	if mc != nil {
		avg := mc.Average()
		resp.Average = &avg
	}
	return c.JSON(resp)
}

// handleStop asks the conversation to end
func (s *Server) handleStop(c *fiber.Ctx) error {
	if s.OnStop == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "stop not configured",
		})
	}

	s.logger.Info("stop requested from dashboard", "remote", c.IP())
	s.OnStop()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"stopping": true,
	})
}

// handleStatusWS streams state updates, starting with the current state.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	data, err := json.Marshal(s.Status())
	if err != nil {
		c.Close()
		return
	}
	hub.NewClient(s.statusHub, c, hub.NewJSONMessage(data)).Run()
}

// handleLogsWS streams log entries, starting with the buffered ones.
func (s *Server) handleLogsWS(c *websocket.Conn) {
	s.logsMu.RLock()
	backlog := make([]hub.Message, 0, len(s.logs))
	for _, entry := range s.logs {
		if data, err := json.Marshal(entry); err == nil {
			backlog = append(backlog, hub.NewJSONMessage(data))
		}
	}
	s.logsMu.RUnlock()

	hub.NewClient(s.logHub, c, backlog...).Run()
}
