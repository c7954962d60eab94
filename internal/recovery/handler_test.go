package recovery

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/thetaxjournal/accountsvedartha/internal/seal"
)

func upload(t *testing.T, h *Handler, field string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "capture.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := chi.NewRouter()
	h.MountRoutes(r)
	req := httptest.NewRequest(http.MethodPost, "/recover", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, blank(300, 300)))
	return buf.Bytes()
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHandlerRecoversAndVerifies(t *testing.T) {
	sealer := seal.New()
	code, err := sealer.Seal(map[string]any{"type": "receipt", "id": "p-1", "amount": 500})
	require.NoError(t, err)

	var verified string
	verifier := VerifierFunc(func(_ context.Context, c string) (any, error) {
		verified = c
		return map[string]string{"verdict": "verified"}, nil
	})
	scanner := NewScanner(&scriptedDecoder{answers: []string{code}}, sealer)
	h := NewHandler(quietLogger(), scanner, verifier, HandlerConfig{MaxUploadBytes: 1 << 20, RatePerMinute: 10})

	rec := upload(t, h, "file", pngBytes(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Code         string            `json:"code"`
		Record       map[string]any    `json:"record"`
		Strategy     string            `json:"strategy"`
		Attempts     int               `json:"attempts"`
		Verification map[string]string `json:"verification"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, code, resp.Code)
	require.Equal(t, "p-1", resp.Record["id"])
	require.Equal(t, StrategyFull, resp.Strategy)
	require.Equal(t, 1, resp.Attempts)
	require.Equal(t, "verified", resp.Verification["verdict"])
	require.Equal(t, code, verified)
}

func TestHandlerReportsMissingCode(t *testing.T) {
	h := NewHandler(quietLogger(), NewScanner(&scriptedDecoder{}, seal.New()), nil, HandlerConfig{})

	rec := upload(t, h, "file", pngBytes(t))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), ReasonNoCode)

	rec = upload(t, h, "document", pngBytes(t))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"field":"file"`)

	rec = upload(t, h, "file", []byte("not an image at all"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerEnforcesUploadLimit(t *testing.T) {
	h := NewHandler(quietLogger(), NewScanner(&scriptedDecoder{}, seal.New()), nil, HandlerConfig{MaxUploadBytes: 64})

	rec := upload(t, h, "file", pngBytes(t))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandlerRejectsPagedSourceWithoutRasterizer(t *testing.T) {
	raster := &stubRasterizer{err: ErrPagedUnsupported}
	scanner := NewScanner(&scriptedDecoder{}, seal.New(), WithRasterizer(raster))
	h := NewHandler(quietLogger(), scanner, nil, HandlerConfig{MaxUploadBytes: 1 << 20})

	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	rec := upload(t, h, "file", pdf)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code, rec.Body.String())
	require.Equal(t, 1, raster.calls)
}
