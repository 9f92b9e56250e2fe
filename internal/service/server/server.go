// Package server implements the authoritative chat relay: it accepts TCP
// connections, runs the handshake on each, tracks authenticated sessions in a
// lock-guarded registry, and fans every accepted message out to all other
// sessions. Per-connection failures never escape their own goroutine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lockchat/internal/envelope"
	"lockchat/internal/history"
	"lockchat/internal/metrics"
	"lockchat/internal/model"
	"lockchat/internal/protocol/handshake"
	"lockchat/internal/utils/log"
	"lockchat/internal/wire"
)

// noticeSender names the implicit author of system notices relayed to
// clients.
const noticeSender = "Server"

const defaultWriteTimeout = 5 * time.Second

type (
	// Options tune a Server. Zero values pick sensible defaults.
	Options struct {
		// OperatorName is the username attached to operator-composed
		// messages sent via Broadcast.
		OperatorName string
		// MaxFrameSize bounds inbound frame payloads.
		MaxFrameSize uint32
		// HandshakeTimeout bounds the whole handshake per connection.
		HandshakeTimeout time.Duration
		// WriteTimeout bounds each frame write during fan-out.
		WriteTimeout time.Duration
		// History, when set, retains sealed envelopes and replays them to
		// joining sessions.
		History history.Store
		// Metrics defaults to a fresh registry.
		Metrics *metrics.Registry
	}

	// Server owns the listener, the session registry and the event
	// subscribers.
	Server struct {
		dek  []byte
		opts Options

		mu       sync.Mutex
		sessions map[string]*Session

		subMu     sync.Mutex
		subs      map[int]chan model.Event
		nextSubID int

		listener net.Listener
		closed   atomic.Bool
	}
)

// New builds a Server relaying under dek. The DEK is read-only shared state
// for the server's lifetime.
func New(dek []byte, opts Options) *Server {
	if opts.OperatorName == "" {
		opts.OperatorName = noticeSender
	}
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = wire.MaxFrameSize
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = handshake.DefaultTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Server{
		dek:      dek,
		opts:     opts,
		sessions: make(map[string]*Session),
		subs:     make(map[int]chan model.Event),
	}
}

// Metrics exposes the server's metrics registry for the admin endpoint.
func (s *Server) Metrics() *metrics.Registry {
	return s.opts.Metrics
}

// ListenAndServe binds addr and serves until Close.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln until Close. Each connection runs in its
// own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln
	log.Info("server listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			log.Error("accept failed", zap.Error(err))
			return err
		}
		go s.handleConn(conn)
	}
}

// Addr returns the bound listener address, for tests and logs.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting, disconnects every session and closes all event
// subscriptions.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.conn.Close()
		s.opts.Metrics.SessionsActive.Dec()
	}

	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
	return nil
}

// Subscribe registers a display-event consumer (the operator TUI, the admin
// feed). The returned cancel func must be called exactly once.
func (s *Server) Subscribe() (<-chan model.Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan model.Event, 64)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish delivers ev to every subscriber without ever blocking the caller:
// a consumer that stops draining only loses its own events.
func (s *Server) publish(ev model.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Sessions snapshots the registry for the admin endpoint.
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info())
	}
	return out
}

func (s *Server) register(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.opts.Metrics.SessionsActive.Inc()
	s.opts.Metrics.SessionsTotal.Inc()
}

// remove takes a session out of the registry and closes it. Idempotent: a
// session torn down from both its own read loop and a failed broadcast write
// is only accounted once.
func (s *Server) remove(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	sess.conn.Close()
	s.opts.Metrics.SessionsActive.Dec()
}

// snapshotExcept returns the current members minus the given session.
func (s *Server) snapshotExcept(id string) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.ID != id {
			out = append(out, sess)
		}
	}
	return out
}

// fanOut writes one sealed frame to every target, tearing down only the
// sessions whose writes fail.
func (s *Server) fanOut(targets []*Session, payload []byte) {
	for _, target := range targets {
		if err := target.writeFrame(payload, s.opts.WriteTimeout); err != nil {
			log.Debug("broadcast write failed, dropping session",
				zap.String("session", target.ID),
				zap.String("username", target.Username),
				zap.Error(err))
			s.remove(target.ID)
		} else {
			s.opts.Metrics.BytesRelayedTotal.Add(float64(len(payload)))
		}
	}
}

// systemNotice publishes a status line locally and relays it, sealed, to all
// sessions except the one named by exceptID (empty means everyone).
func (s *Server) systemNotice(exceptID, text string) {
	s.publish(model.NewSystem(text))

	env, err := envelope.Seal(s.dek, noticeSender, text)
	if err != nil {
		log.Error("seal system notice failed", zap.Error(err))
		return
	}
	payload, err := env.Marshal()
	if err != nil {
		log.Error("marshal system notice failed", zap.Error(err))
		return
	}
	s.fanOut(s.snapshotExcept(exceptID), payload)
}

// Broadcast seals an operator-composed message and sends it to every session.
func (s *Server) Broadcast(text string) error {
	env, err := envelope.Seal(s.dek, s.opts.OperatorName, text)
	if err != nil {
		return err
	}
	payload, err := env.Marshal()
	if err != nil {
		return err
	}

	s.appendHistory(payload)
	s.opts.Metrics.MessagesRelayedTotal.Inc()
	s.fanOut(s.snapshotExcept(""), payload)
	return nil
}

func (s *Server) appendHistory(payload []byte) {
	if s.opts.History == nil {
		return
	}
	if err := s.opts.History.Append(context.Background(), payload); err != nil {
		log.Error("history append failed", zap.Error(err))
	}
}

// replayHistory sends the retained sealed envelopes to a freshly admitted
// session, oldest first.
func (s *Server) replayHistory(sess *Session) {
	if s.opts.History == nil {
		return
	}
	entries, err := s.opts.History.Recent(context.Background())
	if err != nil {
		log.Error("history read failed", zap.Error(err))
		return
	}
	for _, payload := range entries {
		if err := sess.writeFrame(payload, s.opts.WriteTimeout); err != nil {
			log.Debug("history replay write failed", zap.Error(err))
			return
		}
	}
}

// handleConn owns one connection from accept to teardown. Nothing it does can
// affect any other session's loop.
func (s *Server) handleConn(conn net.Conn) {
	peer := conn.RemoteAddr().String()

	username, err := handshake.Accept(conn, s.dek, s.opts.MaxFrameSize, s.opts.HandshakeTimeout)
	if err != nil {
		conn.Close()
		s.opts.Metrics.HandshakeFailuresTotal.Inc()
		log.Info("refused connection", zap.String("peer", peer), zap.Error(err))
		s.systemNotice("", fmt.Sprintf("Refused connection from %s", peer))
		return
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		Connected: time.Now(),
		conn:      conn,
	}

	s.register(sess)
	s.systemNotice(sess.ID, fmt.Sprintf("%s joined from %s", username, peer))
	s.replayHistory(sess)
	log.Info("session established",
		zap.String("session", sess.ID),
		zap.String("username", username),
		zap.String("peer", peer))

	s.readLoop(sess)

	s.remove(sess.ID)
	s.systemNotice("", fmt.Sprintf("%s disconnected", username))
	log.Info("session closed", zap.String("session", sess.ID), zap.String("username", username))
}

func (s *Server) readLoop(sess *Session) {
	for {
		payload, err := wire.ReadFrame(sess.conn, s.opts.MaxFrameSize)
		if err != nil {
			if errors.Is(err, wire.ErrFrameTooLarge) {
				// protocol violation: fatal to this connection only
				s.opts.Metrics.FramesRejectedTotal.Inc()
				log.Info("oversized frame, dropping session",
					zap.String("session", sess.ID), zap.Error(err))
			}
			return
		}

		var plaintext string
		env, err := envelope.Unmarshal(payload)
		if err == nil {
			plaintext, err = envelope.Open(s.dek, env)
		}
		if err != nil {
			// an unauthenticated or garbled frame is dropped, the session
			// lives on
			s.opts.Metrics.FramesRejectedTotal.Inc()
			s.publish(model.NewError(fmt.Sprintf("dropped undecryptable frame from %s", sess.Username)))
			log.Info("dropping bad frame", zap.String("session", sess.ID), zap.Error(err))
			continue
		}

		s.relay(sess, env.Username, plaintext, payload)
	}
}

// relay accounts one verified message and passes the original sealed payload
// through to every other session. The frame was already authenticated, so
// re-framing the same bytes preserves it exactly and spends no fresh nonce.
func (s *Server) relay(sess *Session, sender, plaintext string, payload []byte) {
	s.publish(model.NewMessage(sender, plaintext))
	s.appendHistory(payload)
	s.opts.Metrics.MessagesRelayedTotal.Inc()
	s.fanOut(s.snapshotExcept(sess.ID), payload)
}
