// Package web provides a real-time dashboard for a running conversation.
package web

import (
	"context"
	_ "embed"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-parrot/pkg/hub"
	"github.com/teslashibe/go-parrot/pkg/memory"
	"github.com/teslashibe/go-parrot/pkg/voice"
)

//go:embed index.html
var indexHTML []byte

const (
	maxLogs         = 500
	maxConversation = 100
)

// Status is the conversation state shown on the dashboard.
type Status struct {
	State                voice.State    `json:"state"`
	SessionID            string         `json:"session_id,omitempty"`
	User                 string         `json:"user,omitempty"`
	StartedAt            time.Time      `json:"started_at,omitzero"`
	Turns                int            `json:"turns"`
	Listening            bool           `json:"listening"`
	Speaking             bool           `json:"speaking"`
	LastUserMessage      string         `json:"last_user_message"`
	LastAssistantMessage string         `json:"last_assistant_message"`
	LastNotice           string         `json:"last_notice,omitempty"`
	LastMetrics          *voice.Metrics `json:"last_metrics,omitempty"`
}

// LogEntry is a log line for the dashboard.
type LogEntry struct {
	Time    string            `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// ConversationEntry is a message in the conversation.
type ConversationEntry struct {
	Time    string `json:"time"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Server is the web dashboard server.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	state   Status
	stateMu sync.RWMutex

	logs   []LogEntry
	logsMu sync.RWMutex

	conversation   []ConversationEntry
	conversationMu sync.RWMutex

	// set by Attach, guarded by stateMu
	metrics *voice.MetricsCollector

	statusHub *hub.Hub
	logHub    *hub.Hub

	// OnStop is called by POST /api/stop.
	OnStop func()
}

var _ voice.Observer = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's own logger. It should not feed the
// dashboard log handler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithStopHandler sets OnStop.
func WithStopHandler(fn func()) Option {
	return func(s *Server) { s.OnStop = fn }
}

// NewServer creates a dashboard listening on addr (host:port).
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		logger:       slog.Default(),
		logs:         make([]LogEntry, 0, maxLogs),
		conversation: make([]ConversationEntry, 0, maxConversation),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web.server")
	s.statusHub = hub.New("status", hub.WithLogger(s.logger))
	s.logHub = hub.New("logs", hub.WithLogger(s.logger))

	app := fiber.New(fiber.Config{
		AppName:               "Parrot Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html")
		return c.Send(indexHTML)
	})

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleGetConversation)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/metrics", s.handleMetrics)
	api.Post("/stop", s.handleStop)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Attach binds the dashboard to a loop's session and metrics.
func (s *Server) Attach(l *voice.Loop) {
	sess := l.Session()
	s.UpdateState(func(st *Status) {
		s.metrics = l.Metrics()
		st.State = l.State()
		st.SessionID = sess.ID
		st.User = sess.User
		st.StartedAt = sess.StartedAt
	})
	for _, t := range sess.History.Turns() {
		s.AddConversation(t.Role, t.Content, t.Time)
	}
}

// Start runs the hubs and serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "url", "http://"+s.addr)

	go s.statusHub.Run()
	go s.logHub.Run()

	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("dashboard stopped", "error", err)
		}
	}()
}

// Shutdown disconnects websocket clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.statusHub.Stop()
	s.logHub.Stop()
	return s.app.ShutdownWithContext(ctx)
}

// UpdateState applies update and broadcasts the new state.
func (s *Server) UpdateState(update func(*Status)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state
	s.stateMu.Unlock()

	s.statusHub.BroadcastJSON(state)
}

// Status returns a copy of the current state.
func (s *Server) Status() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// AddLog adds a log entry and broadcasts it.
func (s *Server) AddLog(entry LogEntry) {
	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// AddConversation records a conversation message.
func (s *Server) AddConversation(role, message string, at time.Time) {
	entry := ConversationEntry{
		Time:    at.Format("15:04:05"),
		Role:    role,
		Message: message,
	}

	s.conversationMu.Lock()
	s.conversation = append(s.conversation, entry)
	if len(s.conversation) > maxConversation {
		s.conversation = s.conversation[1:]
	}
	s.conversationMu.Unlock()
}

// StateChanged implements voice.Observer.
func (s *Server) StateChanged(_, to voice.State) {
	s.UpdateState(func(st *Status) {
		st.State = to
		st.Listening = to == voice.Listening
		st.Speaking = to == voice.Playing
	})
}

// TurnAppended implements voice.Observer.
func (s *Server) TurnAppended(t memory.Turn) {
	s.AddConversation(t.Role, t.Content, t.Time)
	s.UpdateState(func(st *Status) {
		switch t.Role {
		case memory.RoleUser:
			st.LastUserMessage = t.Content
		case memory.RoleAssistant:
			st.LastAssistantMessage = t.Content
		}
	})
}

// Noticed implements voice.Observer.
func (s *Server) Noticed(n voice.Notice) {
	s.UpdateState(func(st *Status) {
		st.LastNotice = n.Message
	})
}

// TurnEnded implements voice.Observer.
func (s *Server) TurnEnded(m voice.Metrics) {
	s.UpdateState(func(st *Status) {
		st.Turns = m.Turn
		st.LastMetrics = &m
	})
}
