// Package server implements the sending side of a transfer: an ephemeral
// HTTP server that serves exactly one file, gated by a session and its
// security token.
//
// The server moves through an explicit state machine (Stopped → Starting →
// Running → Stopped) and serves three endpoints under the active session:
//
//	GET /health                 unauthenticated reachability probe
//	GET /info/{sessionId}       file metadata, token required
//	GET /file/{sessionId}       file bytes, token required
//
// While streaming, the server publishes progress snapshots on a broadcast
// stream and shuts itself down shortly after the file has been sent.
//
// Example:
//
//	srv := server.New(server.Config{}, progress.NewBroadcaster())
//	sess, err := srv.Start("/tmp/report.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	text, _ := qr.Encode(sess)
//	// display text as a QR code; the server stops itself after the download
package server
