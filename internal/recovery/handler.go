package recovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/thetaxjournal/accountsvedartha/internal/platform/httpx"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Verifier matches a recovered code against live records.
type Verifier interface {
	Verify(ctx context.Context, code string) (any, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, code string) (any, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, code string) (any, error) { return f(ctx, code) }

// HandlerConfig tunes the upload endpoint.
type HandlerConfig struct {
	MaxUploadBytes int64
	// RatePerMinute limits scans per client IP. Zero disables the limit.
	RatePerMinute int
}

// Handler accepts uploaded captures and returns the recovered record.
type Handler struct {
	logger   *slog.Logger
	scanner  *Scanner
	verifier Verifier
	cfg      HandlerConfig
}

// NewHandler builds a Handler. verifier may be nil.
func NewHandler(logger *slog.Logger, scanner *Scanner, verifier Verifier, cfg HandlerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Handler{logger: logger, scanner: scanner, verifier: verifier, cfg: cfg}
}

// MountRoutes registers the recover route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.cfg.RatePerMinute > 0 {
			r.Use(httprate.Limit(h.cfg.RatePerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Post("/recover", h.recover)
	})
}

type recoverResponse struct {
	Code         string         `json:"code"`
	Record       map[string]any `json:"record"`
	SealedAt     time.Time      `json:"sealedAt"`
	Strategy     string         `json:"strategy"`
	Attempts     int            `json:"attempts"`
	Verification any            `json:"verification,omitempty"`
}

func (h *Handler) recover(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.cfg.MaxUploadBytes {
		httpx.RespondError(w, fmt.Errorf("%w: limit is %d bytes", httpx.ErrTooLarge, h.cfg.MaxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, fmt.Errorf("%w: limit is %d bytes", httpx.ErrTooLarge, h.cfg.MaxUploadBytes))
			return
		}
		httpx.RespondError(w, shared.NewValidationError("file", "multipart field is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		httpx.RespondError(w, shared.NewValidationError("file", "unreadable upload"))
		return
	}

	result, err := h.scanner.RecoverBytes(r.Context(), data)
	if errors.Is(err, ErrPagedUnsupported) {
		httpx.Problem(w, http.StatusUnsupportedMediaType, "Unsupported Media Type", err.Error())
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := recoverResponse{
		Code:     result.Code,
		Record:   result.Record,
		SealedAt: result.SealedAt,
		Strategy: result.Strategy,
		Attempts: result.Attempts,
	}
	if h.verifier != nil {
		v, err := h.verifier.Verify(r.Context(), result.Code)
		if err != nil {
			h.logger.Warn("recovery verify failed", slog.Any("error", err))
		} else {
			resp.Verification = v
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}
