// Package recovery re-extracts sealed authenticity codes from captured documents.
package recovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"github.com/thetaxjournal/accountsvedartha/internal/seal"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Failure reasons reported through shared.NotFoundError.
const (
	ReasonNoCode       = "no authenticity code found"
	ReasonUnrecognized = "unrecognized code"
)

const resource = "authenticity code"

// Unsealer opens decoded codes.
type Unsealer interface {
	Open(code string) (seal.Opened, bool)
}

// Observer receives one call per finished scan.
type Observer interface {
	ObserveRecovery(strategy, outcome string, elapsed time.Duration)
}

// Result describes a successful recovery.
type Result struct {
	Code     string
	Record   seal.Payload
	SealedAt time.Time
	Strategy string
	Attempts int
}

// Scanner walks the strategy list until a region yields a code.
type Scanner struct {
	decoder    Decoder
	unsealer   Unsealer
	rasterizer PageRasterizer
	strategies []Strategy
	observer   Observer
	logger     *slog.Logger
}

// Option customises a Scanner.
type Option func(*Scanner)

// WithStrategies replaces the default priority list.
func WithStrategies(strategies ...Strategy) Option {
	return func(s *Scanner) { s.strategies = strategies }
}

// WithRasterizer sets the renderer used for paged sources.
func WithRasterizer(r PageRasterizer) Option {
	return func(s *Scanner) { s.rasterizer = r }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Scanner) { s.observer = o }
}

// WithLogger sets the scanner logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScanner constructs a Scanner.
func NewScanner(decoder Decoder, unsealer Unsealer, opts ...Option) *Scanner {
	s := &Scanner{
		decoder:    decoder,
		unsealer:   unsealer,
		rasterizer: NewPageRasterizer(0),
		strategies: DefaultStrategies,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recover scans img in strategy order. The first decoded text ends the scan whether
// or not it unseals.
func (s *Scanner) Recover(ctx context.Context, img image.Image) (Result, error) {
	started := time.Now()
	if img == nil || img.Bounds().Empty() {
		s.observe("", "not_found", started)
		return Result{}, &shared.NotFoundError{Resource: resource, Reason: ReasonNoCode}
	}

	bounds := img.Bounds()
	for i, strategy := range s.strategies {
		if err := ctx.Err(); err != nil {
			s.observe(strategy.Name, "cancelled", started)
			return Result{}, err
		}

		region := img
		if rect := strategy.Region(bounds).Intersect(bounds); rect != bounds {
			if rect.Empty() {
				continue
			}
			region = imaging.Crop(img, rect)
		}

		text, err := s.decoder.Decode(ctx, region)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.observe(strategy.Name, "cancelled", started)
				return Result{}, ctxErr
			}
			if !errors.Is(err, ErrNoCode) {
				s.logger.Debug("recovery decode failed", slog.String("strategy", strategy.Name), slog.Any("error", err))
			}
			continue
		}

		opened, ok := s.unsealer.Open(text)
		if !ok {
			s.logger.Info("recovery decoded foreign code", slog.String("strategy", strategy.Name))
			s.observe(strategy.Name, "unrecognized", started)
			return Result{}, &shared.NotFoundError{Resource: resource, Reason: ReasonUnrecognized}
		}

		s.observe(strategy.Name, "recovered", started)
		return Result{
			Code:     text,
			Record:   opened.Record,
			SealedAt: opened.SealedAt,
			Strategy: strategy.Name,
			Attempts: i + 1,
		}, nil
	}

	s.observe("", "not_found", started)
	return Result{}, &shared.NotFoundError{Resource: resource, Reason: ReasonNoCode}
}

// RecoverBytes decodes an uploaded capture. Paged documents contribute page 1 only.
func (s *Scanner) RecoverBytes(ctx context.Context, data []byte) (Result, error) {
	img, err := s.decodeSource(ctx, data)
	if err != nil {
		return Result{}, err
	}
	return s.Recover(ctx, img)
}

func (s *Scanner) decodeSource(ctx context.Context, data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, shared.NewValidationError("file", "is empty")
	}
	mt := mimetype.Detect(data)
	if mt.Is("application/pdf") {
		img, err := s.rasterizer.FirstPage(ctx, data)
		if err != nil {
			// ErrPagedUnsupported stays matchable for the 415 mapping.
			return nil, fmt.Errorf("recovery: rasterize: %w", err)
		}
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, shared.NewValidationError("file", "unsupported image type %s", mt.String())
	}
	return img, nil
}

func (s *Scanner) observe(strategy, outcome string, started time.Time) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveRecovery(strategy, outcome, time.Since(started))
}
