package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/GoradiaNishant/OfflineFileSharing/session"
)

// DefaultImageSize is the default side length of rendered QR images in pixels.
const DefaultImageSize = 256

// Image encodes sess and renders the payload as a PNG of size×size pixels.
// Medium error correction keeps the code scannable from a typical phone
// camera while holding the full JSON payload.
func Image(sess *session.Session, size int) ([]byte, error) {
	text, err := Encode(sess)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultImageSize
	}

	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render QR image: %w", err)
	}
	return png, nil
}
