package seal

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// QRImage renders code as a square QR image of size×size pixels.
func QRImage(code string, size int) (image.Image, error) {
	if size <= 0 {
		size = 256
	}
	symbol, err := qr.Encode(code, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("seal: encode qr: %w", err)
	}
	scaled, err := barcode.Scale(symbol, size, size)
	if err != nil {
		return nil, fmt.Errorf("seal: scale qr: %w", err)
	}
	return scaled, nil
}
