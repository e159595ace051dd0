package apperrors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"syscall"
)

// Kind classifies a transfer failure. The zero value is KindUnknown.
type Kind uint8

const (
	// KindUnknown covers failures that could not be classified.
	KindUnknown Kind = iota

	// KindNetworkTimeout indicates a connect or read deadline was exceeded.
	KindNetworkTimeout
	// KindNetworkRefused indicates the peer actively refused the connection.
	KindNetworkRefused
	// KindNetworkUnavailable indicates the server could not be reached.
	KindNetworkUnavailable
	// KindNoNetwork indicates no usable network interface is present.
	KindNoNetwork

	// KindInsufficientStorage indicates there is not enough free space for the file.
	KindInsufficientStorage
	// KindPermissionDenied indicates a filesystem permission failure.
	KindPermissionDenied
	// KindFileNotFound indicates the requested file does not exist.
	KindFileNotFound
	// KindCorruptedFile indicates a completed download failed its size check.
	KindCorruptedFile

	// KindInvalidQR indicates a malformed or incomplete QR payload.
	KindInvalidQR
	// KindUnsupportedQRVersion indicates a QR payload from an incompatible app version.
	KindUnsupportedQRVersion

	// KindPortUnavailable indicates no port in the configured range could be bound.
	KindPortUnavailable
	// KindAuthFailed indicates the session or token was rejected by the server.
	KindAuthFailed
	// KindSessionExpired indicates the transfer session has timed out.
	KindSessionExpired
	// KindCancelled indicates the user aborted the transfer.
	KindCancelled
)

// String returns a stable identifier for the kind, used in log fields.
func (k Kind) String() string {
	switch k {
	case KindNetworkTimeout:
		return "network_timeout"
	case KindNetworkRefused:
		return "network_refused"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindNoNetwork:
		return "no_network"
	case KindInsufficientStorage:
		return "insufficient_storage"
	case KindPermissionDenied:
		return "permission_denied"
	case KindFileNotFound:
		return "file_not_found"
	case KindCorruptedFile:
		return "corrupted_file"
	case KindInvalidQR:
		return "invalid_qr"
	case KindUnsupportedQRVersion:
		return "unsupported_qr_version"
	case KindPortUnavailable:
		return "port_unavailable"
	case KindAuthFailed:
		return "auth_failed"
	case KindSessionExpired:
		return "session_expired"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether an operation that failed with this kind may
// reasonably be attempted again without user intervention. Kinds that need
// the user to act first (rescanning a stale QR code, freeing space) are not
// retryable here; see Recoverable.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetworkTimeout, KindNetworkRefused, KindNetworkUnavailable,
		KindFileNotFound, KindCorruptedFile,
		KindPortUnavailable:
		return true
	default:
		return false
	}
}

// Recoverable reports whether a fresh attempt can succeed once the user acts
// on the message, e.g. rescanning a QR code or asking the sender to share
// again. Superset of Retryable.
func (k Kind) Recoverable() bool {
	switch k {
	case KindInvalidQR, KindUnsupportedQRVersion, KindAuthFailed, KindSessionExpired:
		return true
	default:
		return k.Retryable()
	}
}

// UserMessage returns the message shown to the person driving the transfer.
func (k Kind) UserMessage() string {
	switch k {
	case KindNetworkTimeout:
		return "Connection timed out. Check that both devices are on the same network and try again."
	case KindNetworkRefused, KindNetworkUnavailable:
		return "Could not reach the sending device. Make sure it is still sharing and try again."
	case KindNoNetwork:
		return "No local network available. Connect both devices to the same Wi-Fi network."
	case KindInsufficientStorage:
		return "Not enough storage space for this file."
	case KindPermissionDenied:
		return "Permission denied while accessing storage."
	case KindFileNotFound:
		return "The file could not be found. Select it again."
	case KindCorruptedFile:
		return "The downloaded file is incomplete. Try the transfer again."
	case KindInvalidQR:
		return "This QR code is not a valid transfer code. Rescan and try again."
	case KindUnsupportedQRVersion:
		return "This QR code was created by a newer app version. Update the app and rescan."
	case KindPortUnavailable:
		return "No free port to share on. Close other sharing apps and try again."
	case KindAuthFailed:
		return "The transfer code was rejected. Scan a fresh QR code from the sender."
	case KindSessionExpired:
		return "This transfer session has expired. Ask the sender to share the file again."
	case KindCancelled:
		return "Transfer cancelled."
	default:
		return "Something went wrong during the transfer."
	}
}

// TransferError is an error with transfer classification and operation context.
type TransferError struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "client.download"
	Message string // technical detail for logs
	Err     error  // underlying cause, may be nil
}

func (e *TransferError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// New creates a classified error with a technical message and no cause.
func New(kind Kind, op, message string) *TransferError {
	return &TransferError{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a classification and operation to an underlying cause.
func Wrap(kind Kind, op string, err error) *TransferError {
	return &TransferError{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification from err, or KindUnknown if err carries none.
func KindOf(err error) Kind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// Retryable reports whether err is classified as safe to retry.
// Unclassified errors are not retryable.
func Retryable(err error) bool {
	return KindOf(err).Retryable()
}

// Recoverable reports whether err's classification allows a fresh attempt
// after user action.
func Recoverable(err error) bool {
	return KindOf(err).Recoverable()
}

// UserMessage returns the user-facing message for err's classification.
func UserMessage(err error) string {
	return KindOf(err).UserMessage()
}

// Classify translates a low-level error into a *TransferError. It inspects
// typed causes only (net.Error, syscall errnos, fs sentinel errors) and is the
// single place such translation happens. Errors that already carry a Kind are
// returned unchanged.
func Classify(op string, err error) *TransferError {
	if err == nil {
		return nil
	}

	var te *TransferError
	if errors.As(err, &te) {
		return te
	}

	kind := KindUnknown
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindNetworkTimeout
	case isTimeout(err):
		kind = KindNetworkTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindNetworkRefused
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETDOWN):
		kind = KindNoNetwork
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		kind = KindNetworkUnavailable
	case errors.Is(err, syscall.ENOSPC):
		kind = KindInsufficientStorage
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, os.ErrNotExist):
		kind = KindFileNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, os.ErrPermission):
		kind = KindPermissionDenied
	case isNetError(err):
		kind = KindNetworkUnavailable
	}

	return &TransferError{Kind: kind, Op: op, Err: err}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}
