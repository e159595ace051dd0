package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedTimeProvider returns a preset time for deterministic expiry tests.
type fixedTimeProvider struct {
	current time.Time
}

func (f *fixedTimeProvider) Now() time.Time { return f.current }

func withFixedTime(t *testing.T, start time.Time) *fixedTimeProvider {
	t.Helper()
	prev := defaultTimeProvider
	fixed := &fixedTimeProvider{current: start}
	defaultTimeProvider = fixed
	t.Cleanup(func() { defaultTimeProvider = prev })
	return fixed
}

func writeTestFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestNewSession(t *testing.T) {
	path := writeTestFile(t, "report.pdf", 4096)

	sess, err := New(path, "192.168.1.50", 8080)
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, path, sess.FilePath)
	assert.Equal(t, "report.pdf", sess.FileName)
	assert.Equal(t, int64(4096), sess.FileSize)
	assert.Equal(t, "192.168.1.50", sess.IPAddress)
	assert.Equal(t, 8080, sess.Port)
	assert.Len(t, sess.SecurityToken, TokenLength)
	assert.Equal(t, DefaultTimeout, sess.Timeout)
	assert.True(t, sess.Valid())
}

func TestNewSessionMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.bin"), "192.168.1.50", 8080)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewSessionRejectsDirectory(t *testing.T) {
	_, err := New(t.TempDir(), "192.168.1.50", 8080)
	require.Error(t, err)
}

func TestNewSessionRejectsEmptyFile(t *testing.T) {
	path := writeTestFile(t, "empty.bin", 0)

	_, err := New(path, "192.168.1.50", 8080)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestNewSessionRejectsBadEndpoint(t *testing.T) {
	path := writeTestFile(t, "a.txt", 1)

	_, err := New(path, "", 8080)
	assert.Error(t, err)

	_, err = New(path, "192.168.1.50", 0)
	assert.Error(t, err)
}

func TestSessionIDsUnique(t *testing.T) {
	path := writeTestFile(t, "a.txt", 1)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		sess, err := New(path, "10.0.0.2", 8080)
		require.NoError(t, err)
		require.False(t, seen[sess.ID], "duplicate session ID %q", sess.ID)
		seen[sess.ID] = true
	}
}

func TestGenerateTokenAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		token, err := GenerateToken(TokenLength)
		require.NoError(t, err)
		require.Len(t, token, 32)
		for _, r := range token {
			require.True(t, isAlphanumeric(r), "token %q contains %q", token, r)
		}
	}
}

func TestGenerateTokenRejectsShortLength(t *testing.T) {
	_, err := GenerateToken(MinTokenLength - 1)
	assert.Error(t, err)
}

func TestExpired(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := withFixedTime(t, start)

	path := writeTestFile(t, "a.txt", 1)
	sess, err := New(path, "192.168.1.50", 8080)
	require.NoError(t, err)

	assert.False(t, sess.Expired())
	assert.True(t, sess.Valid())

	clock.current = start.Add(59 * time.Minute)
	assert.False(t, sess.Expired())

	clock.current = start.Add(61 * time.Minute)
	assert.True(t, sess.Expired())
	assert.False(t, sess.Valid())
}

func TestValidConjunction(t *testing.T) {
	base := Session{
		ID:            "sid1",
		IPAddress:     "192.168.1.50",
		Port:          8080,
		SecurityToken: "abcdefghijklmnop",
		CreatedAt:     time.Now(),
		Timeout:       DefaultTimeout,
	}

	tests := []struct {
		name   string
		mutate func(*Session)
		valid  bool
	}{
		{"baseline", func(*Session) {}, true},
		{"empty id", func(s *Session) { s.ID = "" }, false},
		{"empty ip", func(s *Session) { s.IPAddress = "" }, false},
		{"zero port", func(s *Session) { s.Port = 0 }, false},
		{"short token", func(s *Session) { s.SecurityToken = "short" }, false},
		{"non-alnum token", func(s *Session) { s.SecurityToken = "abcdefgh-jklmnopq" }, false},
		{"expired", func(s *Session) { s.CreatedAt = time.Now().Add(-2 * time.Hour) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := base
			tt.mutate(&sess)
			assert.Equal(t, tt.valid, sess.Valid())
		})
	}
}

func TestFromQR(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	withFixedTime(t, start)

	sess := FromQR("sid1", "192.168.1.50", 8080, "abcdefghijklmnop", "photo.jpg", 2048)

	assert.Empty(t, sess.FilePath, "decoded sessions must not carry a file path")
	assert.Equal(t, start, sess.CreatedAt, "decoded sessions date from scan time")
	assert.Equal(t, "photo.jpg", sess.FileName)
	assert.True(t, sess.Valid())
}

func TestEndpoint(t *testing.T) {
	sess := Session{IPAddress: "10.1.2.3", Port: 9000}
	assert.Equal(t, "10.1.2.3:9000", sess.Endpoint())
}
