package recovery

import (
	"context"
	"errors"
	"image"
)

// ErrPagedUnsupported is returned when no page rasterizer is available.
var ErrPagedUnsupported = errors.New("recovery: paged documents not supported in this build")

// ErrEmptyDocument is returned for a paged source without pages.
var ErrEmptyDocument = errors.New("recovery: document has no pages")

// PageRasterizer renders the first page of a paged document.
type PageRasterizer interface {
	FirstPage(ctx context.Context, data []byte) (image.Image, error)
}
