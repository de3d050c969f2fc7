// Package remote serves the command channel.
//
// Ownership boundary:
// - transport selection (TCP or disabled)
// - the serial accept loop: one connection at a time, one answer per request
// - the command table mapping request words onto engine operations
// - a client for tools and tests
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/danmuck/paramctl/internal/observability"
	"github.com/danmuck/paramctl/internal/protocol"
	"github.com/danmuck/paramctl/internal/protocol/frame"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler answers one request. It never fails; errors become failure
// answers.
type Handler interface {
	Handle(req protocol.RequestMessage) protocol.AnswerMessage
}

// commandSet is implemented by handlers that can tell their own command
// words apart from client noise.
type commandSet interface {
	Known(name string) bool
}

type ServerConfig struct {
	// ReadTimeout bounds the wait for the next request; zero waits forever.
	ReadTimeout time.Duration
	Limits      frame.Limits
	Logger      *zerolog.Logger
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{ReadTimeout: 5 * time.Minute, Limits: frame.DefaultLimits()}
}

type Server struct {
	transport Transport
	handler   Handler
	cfg       ServerConfig
	logger    zerolog.Logger
}

func NewServer(transport Transport, handler Handler, cfg ServerConfig) *Server {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	if cfg.Limits.MaxBodyBytes == 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	return &Server{
		transport: transport,
		handler:   handler,
		cfg:       cfg,
		logger:    logger.With().Str("component", "remote").Logger(),
	}
}

// ListenAndServe opens the transport and serves until ctx is done. A
// disabled transport idles until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.transport.Listen()
	if errors.Is(err, ErrTransportDisabled) {
		s.logger.Info().Msg("remote channel disabled")
		<-ctx.Done()
		return nil
	}
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln one at a time. It closes ln on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("remote listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info().Msg("remote stopped")
				return nil
			}
			return err
		}
		s.serveConn(ctx, conn)
	}
}

// serveConn answers requests until the peer disconnects, an I/O error
// occurs or a malformed message arrives.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	session := uuid.NewString()
	logger := s.logger.With().Str("session", session).Str("remote", conn.RemoteAddr().String()).Logger()
	logger.Info().Msg("client connected")

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
		logger.Info().Msg("client disconnected")
	}()

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		req, err := protocol.ReadRequest(conn, s.cfg.Limits)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
			case errors.Is(err, protocol.ErrProtocol):
				logger.Warn().Err(err).Msg("protocol error")
			case ctx.Err() == nil:
				logger.Warn().Err(err).Msg("read failed")
			}
			return
		}

		start := time.Now()
		ans := s.fit(s.handler.Handle(req))
		elapsed := time.Since(start)
		observability.RecordCommand(s.commandLabel(req.Command), ans.Success(), elapsed)
		logger.Debug().
			Str("command", req.Command).
			Int("args", len(req.Args)).
			Bool("success", ans.Success()).
			Dur("duration", elapsed).
			Msg("command")

		if err := protocol.WriteAnswer(conn, ans, s.cfg.Limits); err != nil {
			logger.Warn().Err(err).Msg("write failed")
			return
		}
	}
}

// fit replaces an answer the frame limit cannot carry with a failure, so the
// session survives.
func (s *Server) fit(ans protocol.AnswerMessage) protocol.AnswerMessage {
	if n := ans.BodyLen(); uint64(n) > uint64(s.cfg.Limits.MaxBodyBytes) {
		return protocol.NewFailure(fmt.Sprintf("answer too large: %d bytes", n))
	}
	return ans
}

// commandLabel bounds the metric label set to the handler's command table.
func (s *Server) commandLabel(cmd string) string {
	if set, ok := s.handler.(commandSet); ok && set.Known(cmd) {
		return cmd
	}
	return "unknown"
}
