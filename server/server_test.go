package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fortio.org/assert"
	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/domain"
	"github.com/featuremesh/featurestore-go/featurestore"
	"github.com/featuremesh/featurestore-go/offlinestore"
	"github.com/featuremesh/featurestore-go/onlinestore"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, prometheus.NewRegistry())
}

func newTestServerWith(t *testing.T, registry *prometheus.Registry) *Server {
	t.Helper()

	offline, err := offlinestore.NewOfflineStore(offlinestore.Config{
		DatasourceType: constants.Datasource_Type_Memory,
	})
	if err != nil {
		t.Fatal(err)
	}

	driver, err := onlinestore.NewDriver(onlinestore.DriverConfig{
		DatasourceType: constants.Datasource_Type_Memory,
	})
	if err != nil {
		t.Fatal(err)
	}
	online := onlinestore.NewStore(driver)

	store := featurestore.NewFeatureStore(domain.NewFeatureViewRegistry(), online, offline)
	if _, err := store.ApplyFeatureView(&domain.FeatureView{
		Name: "customer_features",
		Features: []domain.Feature{
			{Name: "age", Dtype: constants.FS_INT64},
			{Name: "total_purchases", Dtype: constants.FS_DOUBLE},
		},
		Entities: []string{"customer_id"},
		TTL:      86400,
	}); err != nil {
		t.Fatal(err)
	}

	assert.NoError(t, online.InsertData("customer_features",
		map[string]interface{}{"customer_id": 1, "age": 30, "total_purchases": 12.5}))
	if err := online.Close(); err != nil { // drain the write queue
		t.Fatal(err)
	}

	return NewServer(store, WithRegisterer(registry))
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json response %q: %v", rec.Body.String(), err)
	}
	return rec, decoded
}

func TestGetOnlineFeaturesEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()

	rec, body := doJSON(t, h, http.MethodPost, "/get_online_features",
		`{"featureView":"customer_features","entityColumn":"customer_id","entityValue":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "customer_features", body["featureView"])
	assert.Equal(t, float64(1), body["version"])

	features := body["features"].(map[string]interface{})
	assert.Equal(t, float64(30), features["age"])
	assert.Equal(t, 12.5, features["total_purchases"])
}

func TestGetOnlineFeaturesNotFound(t *testing.T) {
	h := newTestServer(t).Handler()

	// unknown view
	rec, _ := doJSON(t, h, http.MethodPost, "/get_online_features",
		`{"featureView":"nope","entityColumn":"customer_id","entityValue":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// known view, absent entity
	rec, body := doJSON(t, h, http.MethodPost, "/get_online_features",
		`{"featureView":"customer_features","entityColumn":"customer_id","entityValue":404}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(body["error"].(string), "404"))
}

func TestGetOnlineFeaturesBadRequest(t *testing.T) {
	h := newTestServer(t).Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/get_online_features", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/get_online_features", `{"featureView":"customer_features"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/get_online_features", ``)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListVersionsEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()

	rec, body := doJSON(t, h, http.MethodGet, "/list_feature_view_versions/customer_features", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "customer_features", body["featureView"])
	assert.Equal(t, []interface{}{float64(1)}, body["versions"])

	rec, _ = doJSON(t, h, http.MethodGet, "/list_feature_view_versions/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/list_feature_view_versions/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTwoServersShareARegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newTestServerWith(t, registry)
	second := newTestServerWith(t, registry)

	for _, s := range []*Server{first, second} {
		rec, _ := doJSON(t, s.Handler(), http.MethodPost, "/get_online_features",
			`{"featureView":"customer_features","entityColumn":"customer_id","entityValue":1}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
