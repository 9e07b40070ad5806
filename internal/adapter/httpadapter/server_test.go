package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockQuery struct {
	got  query.Request
	resp *query.Response
	err  error
}

func (m *mockQuery) Resolve(_ context.Context, req query.Request) (*query.Response, error) {
	m.got = req
	return m.resp, m.err
}

func (m *mockQuery) Meta() query.Meta {
	return query.Meta{Version: "v1", TimeRanges: []string{"2020"}}
}

func newTestServer(readyErr error, svc httpadapter.QueryService) *httpadapter.Server {
	return httpadapter.NewServer(":0", svc, &mockReadiness{err: readyErr}, slog.New(slog.DiscardHandler))
}

func serve(srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(fmt.Errorf("bucket unreachable"), nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestQueryRoutesAbsentWithoutService(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/v1/meta")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWeather_OK(t *testing.T) {
	svc := &mockQuery{resp: &query.Response{
		WindRecords: []domain.VectorCount{{Dir: 1, Vel: 2, Count: 3}},
	}}
	rec := serve(newTestServer(nil, svc), "/v1/weather?timeRange=2020&month=7&fromLat=-1.5&toLat=2&fromLng=170&toLng=-170")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, query.Request{TimeRange: "2020", Month: 7, FromLat: -1.5, ToLat: 2, FromLon: 170, ToLon: -170}, svc.got)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.JSONEq(t, `[{"dir":1,"vel":2,"count":3}]`, string(body["windRecords"]))
}

func TestWeather_Errors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		err      error
		wantCode int
		wantKind string
	}{
		{
			name:     "unparseable month",
			target:   "/v1/weather?timeRange=2020&month=jan&fromLat=0&toLat=1&fromLng=0&toLng=1",
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_input",
		},
		{
			name:     "missing coordinate",
			target:   "/v1/weather?timeRange=2020&month=1&fromLat=0&toLat=1&fromLng=0",
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_input",
		},
		{
			name:     "rejected by resolver",
			target:   "/v1/weather?timeRange=1990&month=1&fromLat=0&toLat=1&fromLng=0&toLng=1",
			err:      fmt.Errorf("%w: unknown time range", query.ErrInvalidInput),
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_input",
		},
		{
			name:     "too many cells",
			target:   "/v1/weather?timeRange=2020&month=1&fromLat=-60&toLat=60&fromLng=0&toLng=90",
			err:      fmt.Errorf("%w: 10000 cells", query.ErrTooManyCells),
			wantCode: http.StatusUnprocessableEntity,
			wantKind: "too_many_cells",
		},
		{
			name:     "storage failure",
			target:   "/v1/weather?timeRange=2020&month=1&fromLat=0&toLat=1&fromLng=0&toLng=1",
			err:      fmt.Errorf("%w: get v1/2020/1/0/0/data: %w", query.ErrFetch, errors.New("dial tcp 10.0.0.1:9000")),
			wantCode: http.StatusServiceUnavailable,
			wantKind: "unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestServer(nil, &mockQuery{err: tt.err}), tt.target)
			assert.Equal(t, tt.wantCode, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, body["error"])
			assert.NotEmpty(t, body["message"])
			assert.NotContains(t, body["message"], "v1/2020", "storage keys must not leak")
		})
	}
}

func TestMeta(t *testing.T) {
	rec := serve(newTestServer(nil, &mockQuery{}), "/v1/meta")
	require.Equal(t, http.StatusOK, rec.Code)

	var meta query.Meta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, "v1", meta.Version)
	assert.Equal(t, []string{"2020"}, meta.TimeRanges)
}
