//go:build !cgo

package recovery

import (
	"context"
	"image"
)

// FitzRasterizer mirrors the cgo build so call sites compile; it cannot render.
type FitzRasterizer struct {
	DPI float64
}

// NewPageRasterizer returns a rasterizer that rejects paged sources.
func NewPageRasterizer(dpi float64) PageRasterizer {
	return FitzRasterizer{DPI: dpi}
}

func (FitzRasterizer) FirstPage(context.Context, []byte) (image.Image, error) {
	return nil, ErrPagedUnsupported
}
