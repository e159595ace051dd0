// Package offlineshare ties the transfer core together: sharing a file over
// the local network from one device and receiving it on another, with no
// internet access, bootstrapped by a scanned QR code.
//
// Sending side:
//
//	sender := offlineshare.NewSender(config.Default())
//	share, err := sender.Share("/tmp/report.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	display(share.QRText) // render as a QR code
//	updates, cancel := sender.Progress()
//	defer cancel()
//	for snap := range updates {
//	    fmt.Printf("%.0f%%\n", snap.Percentage())
//	}
//
// Receiving side:
//
//	receiver := offlineshare.NewReceiver(config.Default())
//	path, err := receiver.Receive(ctx, scannedText, "")
package offlineshare

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/GoradiaNishant/OfflineFileSharing/apperrors"
	"github.com/GoradiaNishant/OfflineFileSharing/client"
	"github.com/GoradiaNishant/OfflineFileSharing/config"
	"github.com/GoradiaNishant/OfflineFileSharing/progress"
	"github.com/GoradiaNishant/OfflineFileSharing/qr"
	"github.com/GoradiaNishant/OfflineFileSharing/server"
	"github.com/GoradiaNishant/OfflineFileSharing/session"
)

// Share describes an active outgoing transfer.
type Share struct {
	// Session is the transfer session served by this device.
	Session *session.Session
	// QRText is the JSON payload to render as a QR code.
	QRText string
}

// Sender owns the serving side of a transfer: one server, one broadcast
// progress stream, one file at a time.
type Sender struct {
	broadcaster *progress.Broadcaster
	server      *server.Server
}

// NewSender builds a sender from cfg.
func NewSender(cfg config.Config) *Sender {
	b := progress.NewBroadcaster()
	return &Sender{
		broadcaster: b,
		server: server.New(server.Config{
			BindIP:         cfg.BindIP,
			PortRangeStart: cfg.PortRangeStart,
			PortRangeEnd:   cfg.PortRangeEnd,
			SessionTimeout: cfg.SessionTimeout,
		}, b),
	}
}

// Share starts serving filePath and returns the session with its QR payload.
// The server stops itself after a completed download, or on Stop.
func (s *Sender) Share(filePath string) (*Share, error) {
	sess, err := s.server.Start(filePath)
	if err != nil {
		return nil, err
	}

	text, err := qr.Encode(sess)
	if err != nil {
		// A session fresh out of Start should always encode; stop the
		// server rather than leak it.
		s.server.Stop()
		return nil, apperrors.Classify("sender.share", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Share",
		"sessionID": sess.ID,
		"fileName":  sess.FileName,
	}).Info("File ready to share")

	return &Share{Session: sess, QRText: text}, nil
}

// QRImage renders the active session's payload as a PNG, size pixels square.
func (s *Sender) QRImage(size int) ([]byte, error) {
	sess := s.server.Session()
	if sess == nil {
		return nil, apperrors.New(apperrors.KindSessionExpired, "sender.qr", "no active session")
	}
	return qr.Image(sess, size)
}

// Progress subscribes to the outgoing transfer's progress stream.
func (s *Sender) Progress() (<-chan progress.Snapshot, func()) {
	return s.broadcaster.Subscribe()
}

// Session returns the active session, or nil when idle.
func (s *Sender) Session() *session.Session {
	return s.server.Session()
}

// Stop terminates the active share, if any.
func (s *Sender) Stop() error {
	return s.server.Stop()
}

// Receiver owns the downloading side of a transfer.
type Receiver struct {
	cfg         config.Config
	broadcaster *progress.Broadcaster
	client      *client.Client
}

// NewReceiver builds a receiver from cfg.
func NewReceiver(cfg config.Config) *Receiver {
	b := progress.NewBroadcaster()
	return &Receiver{
		cfg:         cfg,
		broadcaster: b,
		client: client.New(client.Config{
			ConnectTimeout: cfg.ConnectTimeout,
			DownloadDir:    cfg.DownloadDir,
		}, b),
	}
}

// Receive decodes qrText, validates the session, and downloads the file with
// the configured retry policy. destPath may be empty to use the download
// directory with a collision-free name. Returns the saved path.
func (r *Receiver) Receive(ctx context.Context, qrText, destPath string) (string, error) {
	sess, err := qr.Decode(qrText)
	if err != nil {
		kind := apperrors.KindInvalidQR
		if isVersionMismatch(err) {
			kind = apperrors.KindUnsupportedQRVersion
		}
		return "", apperrors.Wrap(kind, "receiver.decode", err)
	}
	if !sess.Valid() {
		return "", apperrors.New(apperrors.KindSessionExpired, "receiver.decode", "decoded session is not valid")
	}

	return r.client.DownloadFileWithRetry(ctx, sess, destPath, r.cfg.MaxRetries, r.cfg.RetryDelay)
}

// Progress subscribes to the incoming transfer's progress stream.
func (r *Receiver) Progress() (<-chan progress.Snapshot, func()) {
	return r.broadcaster.Subscribe()
}

// Cancel aborts an in-flight download. Safe when idle.
func (r *Receiver) Cancel() {
	r.client.CancelDownload()
}

func isVersionMismatch(err error) bool {
	return errors.Is(err, qr.ErrUnsupportedVersion)
}
