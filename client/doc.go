// Package client implements the receiving side of a transfer: reachability
// validation, metadata fetch, streamed download with progress, retry with
// backoff, and final integrity checking.
//
// A Client runs one download at a time. Timeouts apply to connection
// establishment only; a healthy long transfer is never cut off by an
// end-to-end deadline. Cancellation closes the underlying connection and
// leaves any partially written file behind for the caller to clean up.
//
// Example:
//
//	c := client.New(client.Config{}, progress.NewBroadcaster())
//	sess, err := qr.Decode(scannedText)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	path, err := c.DownloadFileWithRetry(ctx, sess, "", 3, 2*time.Second)
package client
