package qr

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/GoradiaNishant/OfflineFileSharing/session"
)

// Version is the payload version this codec produces and accepts.
const Version = "1.0"

// ErrInvalidSession indicates an attempt to encode a session that is not
// currently valid. Invalid or expired sessions must never appear in a code.
var ErrInvalidSession = errors.New("session is invalid or expired")

// ErrUnsupportedVersion indicates a payload produced by an incompatible
// codec version.
var ErrUnsupportedVersion = errors.New("unsupported payload version")

// FormatError describes a malformed payload. Field names the first offending
// payload field, or "payload" when the payload as a whole is unusable.
type FormatError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid QR payload: field %q %s", e.Field, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// payload is the wire form. Pointer fields distinguish a missing field from
// a present zero value during decoding.
type payload struct {
	Version   *string `json:"version"`
	IP        *string `json:"ip"`
	Port      *int    `json:"port"`
	Token     *string `json:"token"`
	FileName  *string `json:"fileName"`
	FileSize  *int64  `json:"fileSize"`
	SessionID *string `json:"sessionId"`
}

// ipv4Pattern matches dotted-quad shapes only. Segment values above 255 pass
// here on purpose; the connection attempt is what ultimately rejects them.
var ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

var tokenPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Encode serializes sess into the JSON payload. Sessions that fail
// sess.Valid() are refused.
func Encode(sess *session.Session) (string, error) {
	if sess == nil || !sess.Valid() {
		return "", ErrInvalidSession
	}

	version := Version
	data, err := json.Marshal(payload{
		Version:   &version,
		IP:        &sess.IPAddress,
		Port:      &sess.Port,
		Token:     &sess.SecurityToken,
		FileName:  &sess.FileName,
		FileSize:  &sess.FileSize,
		SessionID: &sess.ID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Encode",
		"sessionID": sess.ID,
		"bytes":     len(data),
	}).Debug("Session encoded for QR")

	return string(data), nil
}

// Decode parses and validates text, returning the receiver-side session.
// The returned session has an empty FilePath and a CreatedAt of now; the
// sending server remains authoritative for expiry.
func Decode(text string) (*session.Session, error) {
	if text == "" {
		return nil, &FormatError{Field: "payload", Reason: "is empty"}
	}

	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, &FormatError{Field: "payload", Reason: "is not valid JSON", Err: err}
	}

	if err := checkPresent(&p); err != nil {
		return nil, err
	}

	if *p.Version != Version {
		return nil, &FormatError{
			Field:  "version",
			Reason: fmt.Sprintf("%q is not supported (expected %q)", *p.Version, Version),
			Err:    ErrUnsupportedVersion,
		}
	}
	if !ipv4Pattern.MatchString(*p.IP) {
		return nil, &FormatError{Field: "ip", Reason: "is not a dotted-quad IPv4 address"}
	}
	if *p.Port <= 0 || *p.Port > 65535 {
		return nil, &FormatError{Field: "port", Reason: fmt.Sprintf("%d is out of range", *p.Port)}
	}
	if len(*p.Token) < session.MinTokenLength || !tokenPattern.MatchString(*p.Token) {
		return nil, &FormatError{Field: "token", Reason: "must be at least 16 alphanumeric characters"}
	}
	if *p.FileName == "" {
		return nil, &FormatError{Field: "fileName", Reason: "is empty"}
	}
	if *p.FileSize < 0 {
		return nil, &FormatError{Field: "fileSize", Reason: "is negative"}
	}
	if *p.SessionID == "" {
		return nil, &FormatError{Field: "sessionId", Reason: "is empty"}
	}

	sess := session.FromQR(*p.SessionID, *p.IP, *p.Port, *p.Token, *p.FileName, *p.FileSize)

	logrus.WithFields(logrus.Fields{
		"function":  "Decode",
		"sessionID": sess.ID,
		"fileName":  sess.FileName,
		"fileSize":  sess.FileSize,
	}).Info("QR payload decoded")

	return sess, nil
}

// checkPresent reports the first missing required field.
func checkPresent(p *payload) error {
	fields := []struct {
		name    string
		present bool
	}{
		{"version", p.Version != nil},
		{"ip", p.IP != nil},
		{"port", p.Port != nil},
		{"token", p.Token != nil},
		{"fileName", p.FileName != nil},
		{"fileSize", p.FileSize != nil},
		{"sessionId", p.SessionID != nil},
	}
	for _, f := range fields {
		if !f.present {
			return &FormatError{Field: f.name, Reason: "is missing"}
		}
	}
	return nil
}
