package tax

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func postCompute(body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler().MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tax/compute", strings.NewReader(body)))
	return rec
}

func TestHandlerCompute(t *testing.T) {
	rec := postCompute(`{"supplierState":"Karnataka","placeOfSupply":"Maharashtra",
		"items":[{"description":"Consulting","quantity":1,"rate":10000,"taxPercent":18}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ComputeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 11800.0, resp.GrandTotal)
	require.Equal(t, SplitIGST, resp.Split.Kind)
	require.Equal(t, "Rupees Eleven Thousand Eight Hundred Only", resp.AmountInWords)
}

func TestHandlerComputeValidation(t *testing.T) {
	rec := postCompute(`{"supplierState":"Karnataka","placeOfSupply":"Karnataka","items":[{"description":"x","quantity":-2,"rate":1,"taxPercent":5}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"field":"items[0].quantity"`)

	rec = postCompute(`{"supplierState":"Karnataka","items":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
