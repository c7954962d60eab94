package recovery

import (
	"context"
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoCode is returned by a Decoder when the region holds no readable code.
var ErrNoCode = errors.New("recovery: no code in region")

// Decoder extracts the text of a 2D code from an image.
type Decoder interface {
	Decode(ctx context.Context, img image.Image) (string, error)
}

// QRDecoder decodes QR codes with gozxing.
type QRDecoder struct {
	hints map[gozxing.DecodeHintType]interface{}
}

// NewQRDecoder returns a decoder tuned for photographed pages.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{hints: map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}}
}

func (d *QRDecoder) Decode(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", ErrNoCode
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil || result == nil || result.GetText() == "" {
		return "", ErrNoCode
	}
	return result.GetText(), nil
}
