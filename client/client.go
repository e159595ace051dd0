package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GoradiaNishant/OfflineFileSharing/apperrors"
	"github.com/GoradiaNishant/OfflineFileSharing/progress"
	"github.com/GoradiaNishant/OfflineFileSharing/session"
)

// ErrDownloadInProgress indicates a second download was attempted on a
// client that is already busy. Downloads are single-flight per client.
var ErrDownloadInProgress = errors.New("a download is already in progress")

// DefaultConnectTimeout bounds connection establishment and the health probe.
const DefaultConnectTimeout = 30 * time.Second

// downloadChunkSize is the read buffer for the download loop. Chunks are
// written to disk before the next read, capping memory at one chunk.
const downloadChunkSize = 32 * 1024

// Config tunes a transfer client. The zero value uses defaults.
type Config struct {
	// ConnectTimeout bounds dialing and the health check.
	ConnectTimeout time.Duration
	// DownloadDir receives files when no explicit save path is given.
	// Empty means the user's Downloads directory.
	DownloadDir string
}

// Client downloads one file at a time from a transfer server.
type Client struct {
	httpClient     *http.Client
	connectTimeout time.Duration
	downloadDir    string
	broadcaster    *progress.Broadcaster

	// sleep is swapped out by retry tests.
	sleep func(time.Duration)

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
}

// New creates an idle client publishing progress to b.
func New(cfg Config, b *progress.Broadcaster) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = defaultDownloadDir()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		// One transfer at a time; no reason to pool connections.
		DisableKeepAlives: true,
	}

	return &Client{
		httpClient:     &http.Client{Transport: transport},
		connectTimeout: cfg.ConnectTimeout,
		downloadDir:    cfg.DownloadDir,
		broadcaster:    b,
		sleep:          time.Sleep,
	}
}

// ValidateConnection reports whether the server's health endpoint answers
// 200 within the connect timeout. It does not prove the token: the health
// endpoint is unauthenticated, so token validity is only established by the
// /info or /file calls.
func (c *Client) ValidateConnection(ip string, port int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.connectTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/health", net.JoinHostPort(ip, fmt.Sprintf("%d", port)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// DownloadFile performs a single download attempt: connection check,
// metadata fetch, save-path resolution, then a streamed download with
// progress published per chunk. It returns the final saved path.
//
// customPath, when non-empty, is used verbatim (its parent directory is
// created); otherwise a collision-free path in the download directory is
// chosen from the sanitized file name.
func (c *Client) DownloadFile(ctx context.Context, sess *session.Session, customPath string) (string, error) {
	path, _, err := c.download(ctx, sess, customPath)
	return path, err
}

// download is DownloadFile plus the authoritative expected size, which the
// retry layer needs for its integrity check.
func (c *Client) download(ctx context.Context, sess *session.Session, customPath string) (string, int64, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return "", 0, err
	}
	defer release()

	return c.runDownload(ctx, sess, customPath)
}

// runDownload is one download attempt on an already acquired client. The
// retry layer acquires once and calls this per attempt, so CancelDownload
// stays effective across the whole retry window.
func (c *Client) runDownload(ctx context.Context, sess *session.Session, customPath string) (string, int64, error) {
	if !c.ValidateConnection(sess.IPAddress, sess.Port) {
		return "", 0, apperrors.New(apperrors.KindNetworkUnavailable, "client.download",
			fmt.Sprintf("server %s not reachable", sess.Endpoint()))
	}

	expectedSize, err := c.fetchInfo(ctx, sess)
	if err != nil {
		return "", 0, err
	}

	savePath, err := c.resolvePath(sess, customPath)
	if err != nil {
		return "", 0, err
	}

	if err := c.streamFile(ctx, sess, savePath, expectedSize); err != nil {
		return "", 0, err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "runDownload",
		"sessionID": sess.ID,
		"path":      savePath,
		"bytes":     expectedSize,
	}).Info("Download finished")

	return savePath, expectedSize, nil
}

// acquire enforces single-flight and installs the cancellation hook.
// The returned release restores the client to idle.
func (c *Client) acquire(ctx context.Context) (context.Context, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return nil, nil, ErrDownloadInProgress
	}

	ctx, cancel := context.WithCancel(ctx)
	c.active = true
	c.cancel = cancel

	release := func() {
		c.mu.Lock()
		c.active = false
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}
	return ctx, release, nil
}

// fetchInfo asks the server for authoritative file metadata. A missing size
// field falls back to the session's declared size.
func (c *Client) fetchInfo(ctx context.Context, sess *session.Session) (int64, error) {
	url := fmt.Sprintf("http://%s/info/%s?sessionId=%s&token=%s",
		sess.Endpoint(), sess.ID, sess.ID, sess.SecurityToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, apperrors.Classify("client.info", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.Classify("client.info", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return 0, apperrors.New(apperrors.KindAuthFailed, "client.info", "token rejected by server")
	case resp.StatusCode != http.StatusOK:
		return 0, apperrors.New(apperrors.KindNetworkUnavailable, "client.info",
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	var info struct {
		FileSize *int64 `json:"fileSize"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, apperrors.Wrap(apperrors.KindNetworkUnavailable, "client.info", err)
	}
	if info.FileSize == nil {
		return sess.FileSize, nil
	}
	return *info.FileSize, nil
}

func (c *Client) resolvePath(sess *session.Session, customPath string) (string, error) {
	if customPath != "" {
		if err := os.MkdirAll(filepath.Dir(customPath), 0o755); err != nil {
			return "", apperrors.Classify("client.save", err)
		}
		return customPath, nil
	}
	path, err := resolveSavePath(c.downloadDir, sanitizeFileName(sess.FileName))
	if err != nil {
		return "", apperrors.Classify("client.save", err)
	}
	return path, nil
}

// streamFile downloads /file to savePath, publishing progress per chunk.
func (c *Client) streamFile(ctx context.Context, sess *session.Session, savePath string, totalBytes int64) error {
	url := fmt.Sprintf("http://%s/file/%s?sessionId=%s&token=%s",
		sess.Endpoint(), sess.ID, sess.ID, sess.SecurityToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.Classify("client.download", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Classify("client.download", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return apperrors.New(apperrors.KindAuthFailed, "client.download", "token rejected by server")
	case resp.StatusCode != http.StatusOK:
		return apperrors.New(apperrors.KindNetworkUnavailable, "client.download",
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	out, err := os.OpenFile(savePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return apperrors.Classify("client.save", err)
	}
	defer out.Close()

	snap := progress.Start(totalBytes)
	c.publish(snap)

	var transferred int64
	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return apperrors.Classify("client.save", writeErr)
			}
			transferred += int64(n)
			snap = snap.Update(transferred)
			c.publish(snap)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// A cancelled or expired context surfaces here as the connection
			// closing; classify the context error so a user cancel is terminal
			// rather than a transient network failure.
			if ctx.Err() != nil {
				return apperrors.Classify("client.download", ctx.Err())
			}
			return apperrors.Classify("client.download", readErr)
		}
	}

	c.publish(snap.Finish())
	return nil
}

func (c *Client) publish(snap progress.Snapshot) {
	if c.broadcaster != nil {
		c.broadcaster.Publish(snap)
	}
}

// CancelDownload aborts any in-flight download by cancelling its context,
// which closes the underlying connection. Cancellation is terminal: the
// retry layer classifies it as KindCancelled and does not start another
// attempt. Safe to call when idle. The partially written file is left on
// disk.
func (c *Client) CancelDownload() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		logrus.WithFields(logrus.Fields{
			"function": "CancelDownload",
		}).Info("Download cancelled")
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}
