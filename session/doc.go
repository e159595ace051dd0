// Package session defines the immutable transfer session value shared by the
// server and client sides of a transfer, along with secure token generation.
//
// A Session is created once when the server starts serving a file and is
// read-only thereafter. The receiving side reconstructs an equivalent value
// from decoded QR data; that copy never carries the server-local file path.
//
// Example:
//
//	sess, err := session.New("/tmp/report.pdf", "192.168.1.50", 8080)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !sess.Valid() {
//	    // expired or malformed, obtain a new one
//	}
package session
