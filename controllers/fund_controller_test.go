package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lof_arb_api/models"
	"lof_arb_api/services/fundcache"
	"lof_arb_api/services/pipeline"
	"lof_arb_api/services/stream"
	"lof_arb_api/templates"
)

type stubFetcher struct {
	err error
}

func (s *stubFetcher) FetchQuotes(ctx context.Context) ([]models.RawQuoteRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.RawQuoteRow{{
		Code:        "501000",
		Name:        "XX LOF基金",
		Price:       1.052,
		PriorClose:  1.049,
		TradedValue: 15000000,
		Turnover:    0.85,
		Valuation:   1.039,
	}}, nil
}

func (s *stubFetcher) FetchStatus(ctx context.Context) ([]models.RawStatusRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.RawStatusRow{{
		Code:         "501000",
		Name:         "XX LOF基金",
		FundType:     "股票型",
		NAV:          "1.0390",
		NAVDate:      "2024-06-14",
		SubStatus:    "开放申购",
		RedeemStatus: "开放赎回",
		DailyLimit:   "5000000",
		FeeRate:      "0.15%",
	}}, nil
}

func testRouter(t *testing.T, fetcher fundcache.Fetcher) (*gin.Engine, *stream.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cache := fundcache.New(fetcher, 30*time.Second, pipeline.Thresholds{
		MinAbsPremium:  0.8,
		MinTradedValue: 5000000,
	})
	hub := stream.NewHub()
	t.Cleanup(hub.Shutdown)

	fc := NewFundController(cache, hub)

	router := gin.New()
	tmpl, err := template.ParseFS(templates.TemplateFS, "*.html")
	require.NoError(t, err)
	router.SetHTMLTemplate(tmpl)

	router.GET("/lof", fc.GetLOF)
	router.GET("/", fc.Home)
	router.GET("/health", fc.Health)
	return router, hub
}

func TestGetLOFSuccess(t *testing.T) {
	router, _ := testRouter(t, &stubFetcher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lof", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status     string              `json:"status"`
		UpdateTime string              `json:"update_time"`
		Count      int                 `json:"count"`
		Data       []models.FundRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "success", body.Status)
	assert.NotEmpty(t, body.UpdateTime)
	require.Equal(t, 1, body.Count)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "501000", body.Data[0].Code)
	assert.InDelta(t, 1.25, body.Data[0].PremiumRate, 1e-9)
}

func TestGetLOFColdFailure(t *testing.T) {
	router, _ := testRouter(t, &stubFetcher{err: errors.New("provider down")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lof", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string              `json:"status"`
		Count  int                 `json:"count"`
		Data   []models.FundRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Zero(t, body.Count)
	assert.Empty(t, body.Data)
}

func TestHomeRendersTable(t *testing.T) {
	router, _ := testRouter(t, &stubFetcher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	html := w.Body.String()
	assert.Contains(t, html, "501000")
	assert.Contains(t, html, "XX LOF基金")
	assert.Contains(t, html, "1.25")
}

func TestHealth(t *testing.T) {
	router, _ := testRouter(t, &stubFetcher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"status":"ok"`))
}
