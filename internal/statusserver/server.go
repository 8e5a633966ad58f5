// Package statusserver exposes agent status, metrics and a live record
// stream over HTTP.
package statusserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinytelemetry/netprobe/internal/model"
	"go.uber.org/zap"
)

// DefaultAddr is used when NewServer gets an empty address.
const DefaultAddr = "127.0.0.1:9470"

// StatusSource is the pipeline view served under /api/status.
type StatusSource interface {
	Status() model.AgentStatus
}

// StatsResetter clears the cumulative packet loss counters.
type StatsResetter interface {
	ResetStatistics()
	Statistics() (sent, received uint64)
}

// ServerConfig holds optional collaborators.
type ServerConfig struct {
	Gatherer     prometheus.Gatherer
	LossResetter StatsResetter
	Logger       *zap.Logger
	StreamBuffer int // per-client queued messages before drops
}

// Server provides the agent's HTTP status API.
type Server struct {
	addr      string
	source    StatusSource
	conf      ServerConfig
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

var _ model.RecordObserver = (*Server)(nil)

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a status server for source.
func NewServer(addr string, source StatusSource, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	var c ServerConfig
	if len(conf) > 0 {
		c = conf[0]
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		source:    source,
		conf:      c,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/status", s.handleStatus)
	r.GET("/api/stream", s.handleStream)
	r.POST("/api/probes/packet-loss/reset", s.handleLossReset)
	if s.conf.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.conf.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	s.conf.Logger.Info("status server listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop closes stream clients and gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
	s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline not running"})
		return
	}
	c.JSON(http.StatusOK, s.source.Status())
}

func (s *Server) handleLossReset(c *gin.Context) {
	if s.conf.LossResetter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "packet loss probe is not enabled"})
		return
	}
	sent, received := s.conf.LossResetter.Statistics()
	s.conf.LossResetter.ResetStatistics()
	s.conf.Logger.Info("packet loss statistics reset", zap.Uint64("sent", sent), zap.Uint64("received", received))
	c.JSON(http.StatusOK, gin.H{
		"status":            "reset",
		"previous_sent":     sent,
		"previous_received": received,
	})
}

func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &streamClient{conn: conn, send: make(chan []byte, s.conf.StreamBuffer)}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(client)

	// reads only detect the peer going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(client)
}

func (s *Server) writeLoop(c *streamClient) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.drop(c)
			return
		}
	}
}

func (s *Server) drop(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	_ = c.conn.Close()
}

// StreamClients returns the number of connected stream clients.
func (s *Server) StreamClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

type streamMessage struct {
	Record   model.TelemetryRecord `json:"record"`
	Delivery model.DeliveryReport  `json:"delivery"`
}

// ObserveRecord pushes the record to every stream client. Slow clients
// miss messages instead of blocking the pipeline.
func (s *Server) ObserveRecord(rec model.TelemetryRecord, report model.DeliveryReport) {
	msg, err := json.Marshal(streamMessage{Record: rec, Delivery: report})
	if err != nil {
		s.conf.Logger.Warn("encode stream message", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}
