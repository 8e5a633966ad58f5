// Package receiver listens for telemetry datagrams and decodes them.
package receiver

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/netprobe/internal/aggregate"
	"github.com/tinytelemetry/netprobe/internal/model"
	"go.uber.org/zap"
)

const (
	// DefaultAddr matches the agent's default collector address.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultChannelSize is the default buffer of decoded records.
	DefaultChannelSize = 1024
)

// ServerConfig holds tunable parameters for the receiver.
type ServerConfig struct {
	ChannelSize int
	Logger      *zap.Logger
}

// Received is one decoded datagram.
type Received struct {
	Record model.TelemetryRecord
	Format string
	From   net.Addr
	Size   int
	At     time.Time
}

// Server reads datagrams from one UDP socket.
type Server struct {
	conn    net.PacketConn
	addr    string
	records chan Received
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	invalid atomic.Uint64
}

// NewServer creates a receiver. Default addr is DefaultAddr.
func NewServer(addr string, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	size := DefaultChannelSize
	logger := zap.NewNop()
	if len(conf) > 0 {
		if conf[0].ChannelSize > 0 {
			size = conf[0].ChannelSize
		}
		if conf[0].Logger != nil {
			logger = conf[0].Logger
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		records: make(chan Received, size),
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start binds the socket and begins reading.
func (s *Server) Start() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return err
	}
	s.conn = conn

	s.wg.Add(1)
	go s.readLoop()
	return nil
}

func (s *Server) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, model.MaxDatagramSize)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warn("receiver read failed", zap.Error(err))
				continue
			}
		}

		rec, format, err := aggregate.Decode(buf[:n])
		if err != nil {
			s.invalid.Add(1)
			s.log.Warn("dropped undecodable datagram", zap.Stringer("from", from), zap.Int("bytes", n), zap.Error(err))
			continue
		}

		select {
		case s.records <- Received{Record: rec, Format: format, From: from, Size: n, At: time.Now()}:
		case <-s.ctx.Done():
			return
		}
	}
}

// Stop closes the socket and waits for the read loop.
func (s *Server) Stop() error {
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
	s.wg.Wait()
	close(s.records)
	return nil
}

// Records returns the channel of decoded records. It is closed by Stop.
func (s *Server) Records() <-chan Received {
	return s.records
}

// Invalid returns the number of datagrams that failed to decode.
func (s *Server) Invalid() uint64 {
	return s.invalid.Load()
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.addr
}
