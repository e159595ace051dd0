// Package qr serializes transfer sessions to and from the compact JSON
// payload embedded in a scannable code, and renders that payload as a PNG.
//
// The payload carries exactly the fields the receiver needs to connect:
// version, ip, port, token, fileName, fileSize, sessionId. The server-local
// file path is deliberately never part of the payload.
//
// Decode performs full field validation and reports every violation as a
// *FormatError naming the offending field; an unsupported payload version is
// additionally identifiable via errors.Is(err, ErrUnsupportedVersion) so the
// caller can suggest an app update instead of a rescan.
package qr
