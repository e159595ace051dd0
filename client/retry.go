package client

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GoradiaNishant/OfflineFileSharing/apperrors"
	"github.com/GoradiaNishant/OfflineFileSharing/session"
)

// storageBuffer is the headroom demanded beyond the file size before a
// download starts.
const storageBuffer = 10 * 1024 * 1024

// maxRetryDelay caps the exponential backoff.
const maxRetryDelay = 30 * time.Second

// DownloadFileWithRetry wraps DownloadFile with a storage pre-check, bounded
// retries for transient failures, and a final size verification.
//
// Retries consume at most maxRetries attempts in total. Only failures
// classified retryable (network, timeout, server unavailable) are retried;
// a storage shortfall aborts immediately without consuming an attempt, an
// integrity failure after a complete download is returned to the caller
// rather than retried here, and a cancelled download is terminal.
func (c *Client) DownloadFileWithRetry(ctx context.Context, sess *session.Session, customPath string, maxRetries int, retryDelay time.Duration) (string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	dir := c.downloadDir
	if customPath != "" {
		dir = filepath.Dir(customPath)
	}
	required := sess.FileSize + storageBuffer
	if !c.HasEnoughStorage(dir, required) {
		return "", apperrors.New(apperrors.KindInsufficientStorage, "client.download",
			fmt.Sprintf("need %d bytes free in %s", required, dir))
	}

	// One acquisition spans every attempt, so CancelDownload aborts the
	// whole retry loop, not just the attempt in flight.
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		path, expectedSize, err := c.runDownload(ctx, sess, customPath)
		if err == nil {
			if verifyErr := verifySize(path, expectedSize); verifyErr != nil {
				return "", verifyErr
			}
			return path, nil
		}

		lastErr = err
		if !apperrors.Retryable(err) {
			return "", err
		}
		if attempt == maxRetries {
			break
		}

		delay := backoffDelay(attempt, retryDelay)
		logrus.WithFields(logrus.Fields{
			"function": "DownloadFileWithRetry",
			"attempt":  attempt,
			"delay":    delay,
			"error":    err,
		}).Warn("Download attempt failed, retrying")
		c.sleep(delay)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", apperrors.Classify("client.download", ctxErr)
		}
	}

	return "", lastErr
}

// verifySize confirms the written file matches the size the server declared.
// A mismatch is an integrity failure the caller decides how to handle.
func verifySize(path string, expected int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.Classify("client.verify", err)
	}
	if expected > 0 && info.Size() != expected {
		return apperrors.New(apperrors.KindCorruptedFile, "client.verify",
			fmt.Sprintf("wrote %d bytes, expected %d", info.Size(), expected))
	}
	return nil
}

// backoffDelay grows the base delay exponentially with the attempt number,
// adds up to 25% jitter, and caps the result at maxRetryDelay.
func backoffDelay(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	delay += jitter
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
