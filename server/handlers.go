package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// streamChunkSize is the read buffer used while streaming the file. The HTTP
// layer's flow control paces the reads; progress events are a side effect.
const streamChunkSize = 32 * 1024

// Handler returns the full request pipeline: access logging over CORS over
// endpoint routing. Exposed so tests can drive the router without binding a
// real listener.
func (s *Server) Handler() http.Handler {
	return s.withAccessLog(s.withCORS(http.HandlerFunc(s.route)))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/health":
		s.handleHealth(w, r)
	case strings.HasPrefix(path, "/info/"):
		s.handleInfo(w, r, strings.TrimPrefix(path, "/info/"))
	case strings.HasPrefix(path, "/file/"):
		s.handleFile(w, r, strings.TrimPrefix(path, "/file/"))
	default:
		writeJSONError(w, http.StatusNotFound, "Endpoint not found")
	}
}

// handleHealth answers reachability probes. No authentication: the receiver
// uses this before it has proven its token.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sessionID := ""
	if sess := s.Session(); sess != nil {
		sessionID = sess.ID
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"sessionId": sessionID,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, pathID string) {
	if !s.authorize(r, pathID) {
		writeJSONError(w, http.StatusForbidden, "Invalid or expired token")
		return
	}

	sess := s.Session()
	if sess == nil {
		writeJSONError(w, http.StatusForbidden, "Invalid or expired token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":   sess.ID,
		"fileName":    sess.FileName,
		"fileSize":    sess.FileSize,
		"contentType": contentTypeFor(sess.FileName),
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request, pathID string) {
	if !s.authorize(r, pathID) {
		writeJSONError(w, http.StatusForbidden, "Invalid or expired token")
		return
	}

	sess := s.Session()
	if sess == nil {
		writeJSONError(w, http.StatusForbidden, "Invalid or expired token")
		return
	}

	f, err := os.Open(sess.FilePath)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to serve file: %v", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentTypeFor(sess.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(sess.FileSize, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.FileName))
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusOK)

	s.publishStart(sess.FileSize)

	var total int64
	buf := make([]byte, streamChunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				logrus.WithFields(logrus.Fields{
					"function":  "handleFile",
					"sessionID": sess.ID,
					"sent":      total,
					"error":     writeErr,
				}).Warn("Receiver dropped the connection mid-stream")
				return
			}
			total += int64(n)
			s.publishChunk(total)
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "handleFile",
				"sessionID": sess.ID,
				"error":     readErr,
			}).Error("Read failed while streaming file")
			return
		}
	}

	s.publishComplete()
	s.scheduleShutdown()

	logrus.WithFields(logrus.Fields{
		"function":  "handleFile",
		"sessionID": sess.ID,
		"bytes":     total,
	}).Info("File streamed, shutdown scheduled")
}

// authorize checks the token and session identity carried by a request.
// The session ID appears both in the path and as a query parameter; both
// must match the active session.
func (s *Server) authorize(r *http.Request, pathID string) bool {
	query := r.URL.Query()
	queryID := query.Get("sessionId")
	token := query.Get("token")

	if queryID != "" && queryID != pathID {
		return false
	}
	return s.validateToken(pathID, token)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "writeJSON",
			"error":    err,
		}).Warn("Failed to write response body")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
