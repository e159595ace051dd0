package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoradiaNishant/OfflineFileSharing/apperrors"
	"github.com/GoradiaNishant/OfflineFileSharing/progress"
	"github.com/GoradiaNishant/OfflineFileSharing/session"
)

const testToken = "Tabcdefghijklmnopqrstuvwxyz01234"

// fakeSender emulates the transfer server's wire protocol for client tests.
type fakeSender struct {
	fileName string
	content  []byte

	// failFileRequests makes the first N /file requests answer 503.
	failFileRequests int32
	// truncateAt, when positive, cuts the stream short of the declared size.
	truncateAt int

	fileHits atomic.Int32
}

func (f *fakeSender) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "sessionId": "sid1"})
	})
	mux.HandleFunc("/info/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != testToken {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid or expired token"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sessionId":   "sid1",
			"fileName":    f.fileName,
			"fileSize":    len(f.content),
			"contentType": "application/octet-stream",
		})
	})
	mux.HandleFunc("/file/", func(w http.ResponseWriter, r *http.Request) {
		f.fileHits.Add(1)
		if r.URL.Query().Get("token") != testToken {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid or expired token"})
			return
		}
		if atomic.AddInt32(&f.failFileRequests, -1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body := f.content
		if f.truncateAt > 0 && f.truncateAt < len(body) {
			body = body[:f.truncateAt]
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
	return mux
}

// start runs the fake sender and returns a session pointing at it.
func (f *fakeSender) start(t *testing.T) *session.Session {
	t.Helper()
	ts := httptest.NewServer(f.handler())
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return &session.Session{
		ID:            "sid1",
		FileName:      f.fileName,
		FileSize:      int64(len(f.content)),
		IPAddress:     u.Hostname(),
		Port:          port,
		SecurityToken: testToken,
		CreatedAt:     time.Now(),
		Timeout:       session.DefaultTimeout,
	}
}

func newTestClient(t *testing.T) (*Client, *progress.Broadcaster) {
	t.Helper()
	b := progress.NewBroadcaster()
	c := New(Config{ConnectTimeout: 2 * time.Second, DownloadDir: t.TempDir()}, b)
	return c, b
}

func TestValidateConnection(t *testing.T) {
	sender := &fakeSender{fileName: "a.txt", content: []byte("x")}
	sess := sender.start(t)
	c, _ := newTestClient(t)

	assert.True(t, c.ValidateConnection(sess.IPAddress, sess.Port))
	assert.False(t, c.ValidateConnection("127.0.0.1", 1), "closed port must fail")
}

func TestDownloadFile(t *testing.T) {
	content := make([]byte, 256*1024)
	for i := range content {
		content[i] = byte(i)
	}
	sender := &fakeSender{fileName: "report.pdf", content: content}
	sess := sender.start(t)
	c, b := newTestClient(t)

	updates, cancel := b.Subscribe()
	defer cancel()

	path, err := c.DownloadFile(context.Background(), sess, "")
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "report.pdf", filepath.Base(path))

	select {
	case snap := <-updates:
		assert.True(t, snap.Complete(), "latest snapshot should be terminal")
	case <-time.After(time.Second):
		t.Fatal("no progress published")
	}
}

func TestDownloadFileCustomPath(t *testing.T) {
	sender := &fakeSender{fileName: "a.txt", content: []byte("custom")}
	sess := sender.start(t)
	c, _ := newTestClient(t)

	target := filepath.Join(t.TempDir(), "sub", "dir", "saved.txt")
	path, err := c.DownloadFile(context.Background(), sess, target)
	require.NoError(t, err)
	assert.Equal(t, target, path)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, []byte("custom"), got)
}

func TestDownloadFileCollisionSuffix(t *testing.T) {
	sender := &fakeSender{fileName: "photo.jpg", content: []byte("pix")}
	sess := sender.start(t)

	b := progress.NewBroadcaster()
	dir := t.TempDir()
	c := New(Config{ConnectTimeout: 2 * time.Second, DownloadDir: dir}, b)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo_1.jpg"), []byte("x"), 0o644))

	path, err := c.DownloadFile(context.Background(), sess, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "photo_2.jpg"), path)
}

func TestDownloadFileWrongToken(t *testing.T) {
	sender := &fakeSender{fileName: "a.txt", content: []byte("x")}
	sess := sender.start(t)
	sess.SecurityToken = "WRONGTOKENWRONGTOKENWRONGTOKEN12"

	c, _ := newTestClient(t)
	_, err := c.DownloadFile(context.Background(), sess, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthFailed, apperrors.KindOf(err))
}

func TestDownloadFileUnreachable(t *testing.T) {
	c, _ := newTestClient(t)
	sess := &session.Session{
		ID: "sid1", FileName: "a.txt", FileSize: 10,
		IPAddress: "127.0.0.1", Port: 1,
		SecurityToken: testToken,
		CreatedAt:     time.Now(),
	}

	_, err := c.DownloadFile(context.Background(), sess, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNetworkUnavailable, apperrors.KindOf(err))
}

func TestDownloadSingleFlight(t *testing.T) {
	release := make(chan struct{})
	blocking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		<-release
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(blocking)
	t.Cleanup(func() { close(release); ts.Close() })

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, _ := strconv.Atoi(u.Port())
	sess := &session.Session{
		ID: "sid1", FileName: "a.txt", FileSize: 10,
		IPAddress: u.Hostname(), Port: port,
		SecurityToken: testToken, CreatedAt: time.Now(),
	}

	c, _ := newTestClient(t)
	started := make(chan struct{})
	go func() {
		close(started)
		c.DownloadFile(context.Background(), sess, "")
	}()
	<-started
	time.Sleep(100 * time.Millisecond) // let the first download reach the blocking handler

	_, err = c.DownloadFile(context.Background(), sess, "")
	assert.ErrorIs(t, err, ErrDownloadInProgress)

	c.CancelDownload()
}

func TestCancelDownloadWhenIdle(t *testing.T) {
	c, _ := newTestClient(t)
	c.CancelDownload() // must not panic
}

func TestDownloadFileWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	sender := &fakeSender{
		fileName:         "notes.txt",
		content:          []byte("third time lucky"),
		failFileRequests: 2,
	}
	sess := sender.start(t)

	c, _ := newTestClient(t)
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	path, err := c.DownloadFileWithRetry(context.Background(), sess, "", 3, 10*time.Millisecond)
	require.NoError(t, err)

	assert.Len(t, sleeps, 2, "exactly two retry delays must elapse")
	assert.Equal(t, int32(3), sender.fileHits.Load())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sender.content, got)
}

func TestDownloadFileWithRetryExhaustsAttempts(t *testing.T) {
	sender := &fakeSender{
		fileName:         "a.txt",
		content:          []byte("never"),
		failFileRequests: 100,
	}
	sess := sender.start(t)

	c, _ := newTestClient(t)
	c.sleep = func(time.Duration) {}

	_, err := c.DownloadFileWithRetry(context.Background(), sess, "", 3, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, int32(3), sender.fileHits.Load(), "maxRetries bounds total attempts")
	assert.True(t, apperrors.Retryable(err), "last error should carry the transient classification")
}

func TestDownloadFileWithRetryStorageShortCircuit(t *testing.T) {
	sender := &fakeSender{fileName: "big.bin", content: []byte("payload")}
	sess := sender.start(t)
	sess.FileSize = 1 << 40 // pretend a terabyte

	prev := freeSpaceFn
	freeSpaceFn = func(string) int64 { return 1 << 20 }
	t.Cleanup(func() { freeSpaceFn = prev })

	c, _ := newTestClient(t)
	slept := false
	c.sleep = func(time.Duration) { slept = true }

	_, err := c.DownloadFileWithRetry(context.Background(), sess, "", 3, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientStorage, apperrors.KindOf(err))
	assert.False(t, apperrors.Retryable(err))
	assert.False(t, slept, "storage shortfall must not consume retries")
	assert.Equal(t, int32(0), sender.fileHits.Load(), "no attempt may start")
}

func TestDownloadFileWithRetryCancelIsTerminal(t *testing.T) {
	content := make([]byte, 1<<20)
	streaming := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var fileHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/info/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"sessionId": "sid1", "fileName": "big.bin", "fileSize": len(content),
		})
	})
	mux.HandleFunc("/file/", func(w http.ResponseWriter, r *http.Request) {
		fileHits.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		w.Write(content[:32*1024])
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		once.Do(func() { close(streaming) })
		<-release
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(func() { close(release); ts.Close() })

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, _ := strconv.Atoi(u.Port())
	sess := &session.Session{
		ID: "sid1", FileName: "big.bin", FileSize: int64(len(content)),
		IPAddress: u.Hostname(), Port: port,
		SecurityToken: testToken, CreatedAt: time.Now(),
	}

	c, _ := newTestClient(t)
	var sleeps int
	c.sleep = func(time.Duration) { sleeps++ }

	done := make(chan error, 1)
	go func() {
		_, err := c.DownloadFileWithRetry(context.Background(), sess, "", 3, time.Millisecond)
		done <- err
	}()

	<-streaming
	c.CancelDownload()

	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("download did not return after cancel")
	}

	require.Error(t, err)
	assert.Equal(t, apperrors.KindCancelled, apperrors.KindOf(err))
	assert.False(t, apperrors.Retryable(err))
	assert.Equal(t, int32(1), fileHits.Load(), "a cancelled download must not restart")
	assert.Zero(t, sleeps, "no retry delay may follow a cancel")
}

func TestDownloadFileWithRetryAuthFailureIsNotRetried(t *testing.T) {
	sender := &fakeSender{fileName: "a.txt", content: []byte("secret")}
	sess := sender.start(t)
	sess.SecurityToken = "WRONGTOKENWRONGTOKENWRONGTOKEN12"

	c, _ := newTestClient(t)
	var sleeps int
	c.sleep = func(time.Duration) { sleeps++ }

	_, err := c.DownloadFileWithRetry(context.Background(), sess, "", 3, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthFailed, apperrors.KindOf(err))
	assert.Zero(t, sleeps, "a rejected token must not burn retry attempts")
	assert.Equal(t, int32(0), sender.fileHits.Load(), "the file request must not be re-sent")
}

func TestDownloadFileWithRetryDetectsTruncation(t *testing.T) {
	content := make([]byte, 1000)
	sender := &fakeSender{fileName: "data.bin", content: content, truncateAt: 400}
	sess := sender.start(t)

	c, _ := newTestClient(t)
	c.sleep = func(time.Duration) {}

	_, err := c.DownloadFileWithRetry(context.Background(), sess, "", 3, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCorruptedFile, apperrors.KindOf(err))
	assert.Equal(t, int32(1), sender.fileHits.Load(), "integrity failures are not auto-retried")
}

func TestHasEnoughStorage(t *testing.T) {
	prev := freeSpaceFn
	t.Cleanup(func() { freeSpaceFn = prev })

	c, _ := newTestClient(t)

	freeSpaceFn = func(string) int64 { return 100 }
	assert.True(t, c.HasEnoughStorage(t.TempDir(), 50))
	assert.False(t, c.HasEnoughStorage(t.TempDir(), 200))

	freeSpaceFn = func(string) int64 { return -1 }
	assert.True(t, c.HasEnoughStorage(t.TempDir(), 1<<40), "unknown space assumes sufficient")
}

func TestFetchInfoFallsBackToSessionSize(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/info/", func(w http.ResponseWriter, r *http.Request) {
		// No fileSize field in the reply.
		json.NewEncoder(w).Encode(map[string]any{"sessionId": "sid1", "fileName": "a.txt"})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, _ := strconv.Atoi(u.Port())
	sess := &session.Session{
		ID: "sid1", FileName: "a.txt", FileSize: 777,
		IPAddress: u.Hostname(), Port: port,
		SecurityToken: testToken, CreatedAt: time.Now(),
	}

	c, _ := newTestClient(t)
	size, err := c.fetchInfo(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, int64(777), size)
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := backoffDelay(attempt, base)
		assert.LessOrEqual(t, d, maxRetryDelay, "attempt %d", attempt)
		if attempt <= 5 {
			assert.GreaterOrEqual(t, d, prev/2, "delay should broadly grow")
		}
		prev = d
	}
	assert.Equal(t, maxRetryDelay, backoffDelay(50, base))
}

func TestBackoffDelayZeroBase(t *testing.T) {
	assert.Greater(t, backoffDelay(1, 0), time.Duration(0))
}
