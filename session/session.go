package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TokenLength is the length of generated security tokens.
const TokenLength = 32

// MinTokenLength is the minimum token length accepted as well-formed.
const MinTokenLength = 16

// DefaultTimeout is the session lifetime after which the token stops validating.
const DefaultTimeout = time.Hour

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// defaultTimeProvider is the package-level default time provider.
var defaultTimeProvider TimeProvider = DefaultTimeProvider{}

// Session describes a single file transfer. Treat values as immutable once
// constructed; a new transfer gets a new Session.
type Session struct {
	// ID is an opaque unique identifier generated at server start.
	ID string
	// FilePath is the server-local path to the shared file. It is never
	// transmitted and is empty on sessions decoded from a QR payload.
	FilePath string
	// FileName is the display name of the shared file.
	FileName string
	// FileSize is the file size in bytes.
	FileSize int64
	// IPAddress and Port locate the transfer server on the local network.
	IPAddress string
	Port      int
	// SecurityToken gates access to the session's endpoints.
	SecurityToken string
	// CreatedAt is when this value was constructed. On the receiving side
	// this is the scan time, not the server's start time.
	CreatedAt time.Time
	// Timeout is the session lifetime. Zero means DefaultTimeout.
	Timeout time.Duration
}

// New builds a session for serving filePath at ip:port, generating a fresh
// identifier and security token. The file must exist, be a regular file, and
// be non-empty: an empty file has no bytes to stream, so progress consumers
// would never see a terminal frame. Filesystem errors are returned unwrapped
// for boundary classification.
func New(filePath, ip string, port int) (*Session, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat shared file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("shared path %q is a directory, not a file", filePath)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("shared file %q is empty", filePath)
	}
	if ip == "" {
		return nil, fmt.Errorf("no server IP address")
	}
	if port <= 0 {
		return nil, fmt.Errorf("invalid server port %d", port)
	}

	token, err := GenerateToken(TokenLength)
	if err != nil {
		return nil, fmt.Errorf("generate security token: %w", err)
	}

	now := defaultTimeProvider.Now()
	sess := &Session{
		ID:            newSessionID(now),
		FilePath:      filePath,
		FileName:      filepath.Base(filePath),
		FileSize:      info.Size(),
		IPAddress:     ip,
		Port:          port,
		SecurityToken: token,
		CreatedAt:     now,
		Timeout:       DefaultTimeout,
	}

	logrus.WithFields(logrus.Fields{
		"function":  "New",
		"sessionID": sess.ID,
		"fileName":  sess.FileName,
		"fileSize":  sess.FileSize,
		"endpoint":  fmt.Sprintf("%s:%d", ip, port),
	}).Info("Transfer session created")

	return sess, nil
}

// FromQR reconstructs the client-side equivalent of a server session from
// decoded QR fields. FilePath is always empty and CreatedAt is the local
// clock, so client-side expiry is measured from scan time. The server remains
// authoritative for expiry through its own token validation.
func FromQR(id, ip string, port int, token, fileName string, fileSize int64) *Session {
	return &Session{
		ID:            id,
		FileName:      fileName,
		FileSize:      fileSize,
		IPAddress:     ip,
		Port:          port,
		SecurityToken: token,
		CreatedAt:     defaultTimeProvider.Now(),
		Timeout:       DefaultTimeout,
	}
}

// Expired reports whether the session lifetime has elapsed.
func (s *Session) Expired() bool {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return defaultTimeProvider.Now().Sub(s.CreatedAt) > timeout
}

// Valid reports whether the session can still authorize a transfer: not
// expired, token well-formed, and identity plus endpoint present.
func (s *Session) Valid() bool {
	return !s.Expired() &&
		tokenWellFormed(s.SecurityToken) &&
		s.ID != "" &&
		s.IPAddress != "" &&
		s.Port > 0
}

// Endpoint returns the host:port address of the transfer server.
func (s *Session) Endpoint() string {
	return fmt.Sprintf("%s:%d", s.IPAddress, s.Port)
}

// newSessionID builds an opaque identifier from the creation time and a
// random suffix.
func newSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

func tokenWellFormed(token string) bool {
	if len(token) < MinTokenLength {
		return false
	}
	for _, r := range token {
		if !isAlphanumeric(r) {
			return false
		}
	}
	return true
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
