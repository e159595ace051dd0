package qr

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoradiaNishant/OfflineFileSharing/session"
)

func validSession() *session.Session {
	return &session.Session{
		ID:            "sid1",
		FilePath:      "/tmp/report.pdf",
		FileName:      "report.pdf",
		FileSize:      1048576,
		IPAddress:     "192.168.1.50",
		Port:          8080,
		SecurityToken: "Tabcdefghijklmnopqrstuvwxyz01234",
		CreatedAt:     time.Now(),
		Timeout:       session.DefaultTimeout,
	}
}

// validPayload returns the canonical wire fields as a mutable map so tests
// can drop or corrupt individual fields.
func validPayload() map[string]any {
	return map[string]any{
		"version":   "1.0",
		"ip":        "192.168.1.50",
		"port":      8080,
		"token":     "Tabcdefghijklmnopqrstuvwxyz01234",
		"fileName":  "report.pdf",
		"fileSize":  1048576,
		"sessionId": "sid1",
	}
}

func marshal(t *testing.T, m map[string]any) string {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return string(data)
}

func TestRoundTrip(t *testing.T) {
	sess := validSession()

	text, err := Encode(sess)
	require.NoError(t, err)

	got, err := Decode(text)
	require.NoError(t, err)

	assert.Equal(t, sess.IPAddress, got.IPAddress)
	assert.Equal(t, sess.Port, got.Port)
	assert.Equal(t, sess.SecurityToken, got.SecurityToken)
	assert.Equal(t, sess.FileName, got.FileName)
	assert.Equal(t, sess.FileSize, got.FileSize)
	assert.Equal(t, sess.ID, got.ID)

	// Deliberately not round-tripped.
	assert.Empty(t, got.FilePath)
}

func TestEncodeWireFormat(t *testing.T) {
	text, err := Encode(validSession())
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &wire))

	assert.Equal(t, "1.0", wire["version"])
	assert.Equal(t, "192.168.1.50", wire["ip"])
	assert.Equal(t, float64(8080), wire["port"])
	assert.Equal(t, "report.pdf", wire["fileName"])
	assert.Equal(t, float64(1048576), wire["fileSize"])
	assert.Equal(t, "sid1", wire["sessionId"])
	assert.NotContains(t, wire, "filePath", "file path must never reach the wire")
	assert.Len(t, wire, 7)
}

func TestEncodeRefusesInvalidSession(t *testing.T) {
	expired := validSession()
	expired.CreatedAt = time.Now().Add(-2 * time.Hour)

	_, err := Encode(expired)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestDecodeEmptyAndGarbage(t *testing.T) {
	for _, text := range []string{"", "not json at all", "{truncated"} {
		_, err := Decode(text)
		var fe *FormatError
		require.ErrorAs(t, err, &fe, "payload %q", text)
		assert.Equal(t, "payload", fe.Field)
	}
}

func TestDecodeMissingFields(t *testing.T) {
	for _, field := range []string{"version", "ip", "port", "token", "fileName", "fileSize", "sessionId"} {
		t.Run(field, func(t *testing.T) {
			p := validPayload()
			delete(p, field)

			_, err := Decode(marshal(t, p))
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, field, fe.Field, "error must name the missing field")
			assert.NotErrorIs(t, err, ErrUnsupportedVersion)
		})
	}
}

func TestDecodeVersionMismatchIsDistinct(t *testing.T) {
	p := validPayload()
	p["version"] = "2.0"

	_, err := Decode(marshal(t, p))
	require.ErrorIs(t, err, ErrUnsupportedVersion)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "version", fe.Field)
}

func TestDecodeFieldValidation(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"ip not dotted quad", "ip", "localhost"},
		{"ip too many octets", "ip", "10.0.0.1.2"},
		{"ip wide segment", "ip", "1234.0.0.1"},
		{"port zero", "port", 0},
		{"port negative", "port", -1},
		{"port too large", "port", 65536},
		{"token short", "token", "abc123"},
		{"token non-alnum", "token", "abcdefgh!jklmnopq"},
		{"token empty", "token", ""},
		{"fileName empty", "fileName", ""},
		{"fileSize negative", "fileSize", -1},
		{"sessionId empty", "sessionId", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			p[tt.field] = tt.value

			_, err := Decode(marshal(t, p))
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestDecodeLooseIPSegmentsAccepted(t *testing.T) {
	// Shape-only validation: 999.999.999.999 matches the dotted-quad
	// pattern and is accepted here; the dial is what rejects it.
	p := validPayload()
	p["ip"] = "999.999.999.999"

	sess, err := Decode(marshal(t, p))
	require.NoError(t, err)
	assert.Equal(t, "999.999.999.999", sess.IPAddress)
}

func TestDecodeIgnoresExtraFields(t *testing.T) {
	p := validPayload()
	p["futureField"] = "ignored"

	sess, err := Decode(marshal(t, p))
	require.NoError(t, err)
	assert.Equal(t, "sid1", sess.ID)
}

func TestDecodedSessionIsFreshAndValid(t *testing.T) {
	sess, err := Decode(marshal(t, validPayload()))
	require.NoError(t, err)

	assert.True(t, sess.Valid())
	assert.False(t, sess.Expired())
	assert.WithinDuration(t, time.Now(), sess.CreatedAt, 5*time.Second)
}

func TestImage(t *testing.T) {
	png, err := Image(validSession(), 0)
	require.NoError(t, err)
	assert.True(t, len(png) > 8 && string(png[1:4]) == "PNG", "expected PNG output")
}

func TestImageRefusesInvalidSession(t *testing.T) {
	_, err := Image(&session.Session{}, 256)
	assert.Error(t, err)
}

func TestFormatErrorMessageNamesField(t *testing.T) {
	err := &FormatError{Field: "port", Reason: "0 is out of range"}
	assert.Equal(t, `invalid QR payload: field "port" 0 is out of range`, err.Error())
}
