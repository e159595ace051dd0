package server

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GoradiaNishant/OfflineFileSharing/apperrors"
	"github.com/GoradiaNishant/OfflineFileSharing/discovery"
	"github.com/GoradiaNishant/OfflineFileSharing/progress"
	"github.com/GoradiaNishant/OfflineFileSharing/session"
)

// ErrAlreadyRunning indicates Start was called while a session is active.
// Concurrent sessions are rejected, not queued.
var ErrAlreadyRunning = errors.New("transfer server already running")

// DefaultShutdownGrace is how long the server lingers after the last byte so
// the response can flush before the listener closes.
const DefaultShutdownGrace = 2 * time.Second

// State is the server lifecycle state.
type State uint8

const (
	// StateStopped means no listener is bound and no session exists.
	StateStopped State = iota
	// StateStarting means discovery and session setup are in progress.
	StateStarting
	// StateRunning means the server is accepting requests for its session.
	StateRunning
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "invalid"
	}
}

// Config tunes the transfer server. The zero value uses defaults.
type Config struct {
	// BindIP overrides interface discovery when non-empty.
	BindIP string
	// PortRangeStart and PortRangeEnd bound the port probe.
	// Zero means the discovery package defaults.
	PortRangeStart int
	PortRangeEnd   int
	// SessionTimeout overrides the session default lifetime when positive.
	SessionTimeout time.Duration
	// ShutdownGrace overrides DefaultShutdownGrace when positive.
	ShutdownGrace time.Duration
}

// Server serves a single file over HTTP for the lifetime of one session.
type Server struct {
	cfg         Config
	broadcaster *progress.Broadcaster

	mu            sync.Mutex
	state         State
	sess          *session.Session
	httpServer    *http.Server
	listener      net.Listener
	lastSnap      progress.Snapshot
	shutdownTimer *time.Timer
}

// New creates a stopped server that publishes progress to b.
func New(cfg Config, b *progress.Broadcaster) *Server {
	if cfg.PortRangeStart == 0 {
		cfg.PortRangeStart = discovery.DefaultPortRangeStart
	}
	if cfg.PortRangeEnd == 0 {
		cfg.PortRangeEnd = discovery.DefaultPortRangeEnd
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	return &Server{cfg: cfg, broadcaster: b}
}

// Start discovers the local endpoint, builds a session for filePath, and
// begins serving. It fails with ErrAlreadyRunning unless the server is
// stopped; discovery and filesystem failures are classified and propagated.
func (s *Server) Start(filePath string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return nil, ErrAlreadyRunning
	}
	s.state = StateStarting

	sess, err := s.startLocked(filePath)
	if err != nil {
		s.state = StateStopped
		return nil, err
	}
	s.state = StateRunning

	logrus.WithFields(logrus.Fields{
		"function":  "Start",
		"sessionID": sess.ID,
		"fileName":  sess.FileName,
		"endpoint":  sess.Endpoint(),
	}).Info("Transfer server running")

	return sess, nil
}

func (s *Server) startLocked(filePath string) (*session.Session, error) {
	ip := s.cfg.BindIP
	if ip == "" {
		var err error
		ip, err = discovery.LocalIPAddress()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindNoNetwork, "server.start", err)
		}
	}

	port, err := discovery.FindAvailablePort(s.cfg.PortRangeStart, s.cfg.PortRangeEnd)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindPortUnavailable, "server.start", err)
	}

	sess, err := session.New(filePath, ip, port)
	if err != nil {
		return nil, apperrors.Classify("server.start", err)
	}
	if s.cfg.SessionTimeout > 0 {
		sess.Timeout = s.cfg.SessionTimeout
	}

	listener, err := net.Listen("tcp", sess.Endpoint())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindPortUnavailable, "server.start", err)
	}

	s.sess = sess
	s.listener = listener
	s.lastSnap = progress.Start(sess.FileSize)
	s.httpServer = &http.Server{
		Handler: s.Handler(),
	}

	go func(srv *http.Server, ln net.Listener) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "Start",
				"error":    err,
			}).Error("HTTP server terminated")
		}
	}(s.httpServer, listener)

	return sess, nil
}

// Stop force-closes the listener and clears the session. If a session was
// active, one final completed snapshot is published so subscribers waiting
// for a terminal event do not hang; stopping is treated as transfer-ending
// rather than failure.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Server) stopLocked() error {
	if s.state == StateStopped {
		return nil
	}

	if s.shutdownTimer != nil {
		s.shutdownTimer.Stop()
		s.shutdownTimer = nil
	}

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Close()
	}

	hadSession := s.sess != nil
	sessionID := ""
	if hadSession {
		sessionID = s.sess.ID
	}

	s.httpServer = nil
	s.listener = nil
	s.sess = nil
	s.state = StateStopped

	if hadSession && s.broadcaster != nil {
		s.broadcaster.Publish(s.lastSnap.Finish())
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Stop",
		"sessionID": sessionID,
	}).Info("Transfer server stopped")

	return err
}

// scheduleShutdown stops the server after the configured grace period,
// giving the in-flight response time to flush.
func (s *Server) scheduleShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || s.shutdownTimer != nil {
		return
	}
	s.shutdownTimer = time.AfterFunc(s.cfg.ShutdownGrace, func() {
		if err := s.Stop(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "scheduleShutdown",
				"error":    err,
			}).Warn("Error during automatic shutdown")
		}
	})
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns the active session, or nil when stopped.
func (s *Server) Session() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

// Addr returns the bound listener address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// validateToken authorizes a request against the active session: exact match
// on both session ID and token, and the session must not be expired. Callers
// surface any failure as a uniform 403.
func (s *Server) validateToken(sessionID, token string) bool {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()

	if sess == nil {
		return false
	}
	idMatch := subtle.ConstantTimeCompare([]byte(sessionID), []byte(sess.ID)) == 1
	tokenMatch := subtle.ConstantTimeCompare([]byte(token), []byte(sess.SecurityToken)) == 1
	return idMatch && tokenMatch && !sess.Expired()
}

// publishStart resets progress for a beginning stream and broadcasts the
// initial snapshot. The reset re-stamps StartTime so speed and ETA measure
// the stream, not the idle time the server spent waiting for a receiver.
func (s *Server) publishStart(totalBytes int64) {
	s.mu.Lock()
	s.lastSnap = progress.Start(totalBytes)
	snap := s.lastSnap
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.Publish(snap)
	}
}

// publishChunk records and broadcasts streaming progress.
func (s *Server) publishChunk(total int64) {
	s.mu.Lock()
	s.lastSnap = s.lastSnap.Update(total)
	snap := s.lastSnap
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.Publish(snap)
	}
}

// publishComplete broadcasts the terminal snapshot for a finished stream.
func (s *Server) publishComplete() {
	s.mu.Lock()
	s.lastSnap = s.lastSnap.Finish()
	snap := s.lastSnap
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.Publish(snap)
	}
}
