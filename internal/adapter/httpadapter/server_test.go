package httpadapter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/couchcryptid/crop-damage-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/crop-damage-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(readyErr error) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := domain.NewEngine(nil, domain.WithLogger(logger))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, engine, logger)
}

func serve(srv *httpadapter.Server, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(fmt.Errorf("not ready yet")), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEstimate(t *testing.T) {
	srv := newTestServer(nil)

	t.Run("soybean vegetative", func(t *testing.T) {
		rec := serve(srv, http.MethodPost, "/v1/estimates",
			`{"crop":"Soja","stage":"3","datos":{"dato_1":"25","dato_2":"75","dato_3":20,"dato_4":"50"}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "soja", body["crop"])
		assert.Equal(t, 17.2, body["damage"])
		assert.Equal(t, "17,2", body["damage_display"])
		assert.Len(t, body["factors"], 3)
		stage, ok := body["stage"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "v9-vn", stage["label"])
	})

	t.Run("numeric stage code", func(t *testing.T) {
		rec := serve(srv, http.MethodPost, "/v1/estimates", `{"crop":"maiz","stage":1,"datos":{"dato_3":"50"}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"damage":1.4`)
	})

	t.Run("not applicable", func(t *testing.T) {
		rec := serve(srv, http.MethodPost, "/v1/estimates", `{"crop":"soja","stage":"13","datos":{}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"damage":null`)
		assert.Contains(t, rec.Body.String(), `"damage_display":""`)
	})

	t.Run("unroutable stage", func(t *testing.T) {
		rec := serve(srv, http.MethodPost, "/v1/estimates", `{"crop":"maiz","stage":"99","datos":{}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"damage":0.0`)
		assert.Contains(t, rec.Body.String(), "unknown phenological stage")
	})

	t.Run("unknown crop", func(t *testing.T) {
		rec := serve(srv, http.MethodPost, "/v1/estimates", `{"crop":"arroz","stage":"1","datos":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown crop")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := serve(srv, http.MethodPost, "/v1/estimates", `{"crop":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := serve(srv, http.MethodGet, "/v1/estimates", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRecompute(t *testing.T) {
	srv := newTestServer(nil)

	body := `{"crop":"soja","stage":"2","samples":[
		{"id":"a","crop":"soja","stage_code":"3","sample_type":"soybean_vegetative","datos":{"dato_1":"10","dato_2":"90"},"damage":0.8},
		{"id":"b","lot_id":"lote-1","crop":"soja","stage_code":"3","sample_type":"soybean_vegetative","datos":{"dato_1":"10","dato_2":"90"},"damage":0.8},
		{"id":"c","crop":"soja","stage_code":"13","sample_type":"soybean_late_reproductive","datos":{},"damage":null}
	]}`
	rec := serve(srv, http.MethodPost, "/v1/recompute", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Recomputed int                  `json:"recomputed"`
		Samples    []domain.FieldSample `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Recomputed)
	require.Len(t, resp.Samples, 3)
	assert.Equal(t, "2", resp.Samples[0].StageCode)
	assert.Equal(t, "v6-v8", resp.Samples[0].Stage.Label)
	assert.Equal(t, "3", resp.Samples[1].StageCode, "samples in a lot are left alone")
	assert.False(t, resp.Samples[2].Damage.Applicable())
}

func TestStages(t *testing.T) {
	srv := newTestServer(nil)

	rec := serve(srv, http.MethodGet, "/v1/stages?crop=Ma%C3%ADz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Crop   domain.Crop    `json:"crop"`
		Stages []domain.Stage `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.Corn, body.Crop)
	require.Len(t, body.Stages, 12)
	assert.Equal(t, "V1-V4", body.Stages[0].Label)
	assert.Equal(t, domain.GroupCornReproductive, body.Stages[11].Group)

	rec = serve(srv, http.MethodGet, "/v1/stages", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
