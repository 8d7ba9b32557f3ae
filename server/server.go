// Package server exposes the feature store over HTTP: online feature
// retrieval, feature view version listing, and prometheus metrics.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/featuremesh/featurestore-go/domain"
	"github.com/featuremesh/featurestore-go/featurestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Option func(s *Server)

func WithLogger(l domain.Logger) Option {
	return func(s *Server) {
		s.Logger = l
	}
}

func WithErrorLogger(l domain.Logger) Option {
	return func(s *Server) {
		s.ErrorLogger = l
	}
}

// WithRegisterer overrides the metrics registry, mainly so tests can use an
// isolated one.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *Server) {
		s.registerer = r
	}
}

type Server struct {
	store *featurestore.FeatureStore

	Logger      domain.Logger
	ErrorLogger domain.Logger

	registerer prometheus.Registerer

	retrievals *prometheus.CounterVec
	requests   *prometheus.CounterVec
	queueDepth prometheus.GaugeFunc
}

func NewServer(store *featurestore.FeatureStore, opts ...Option) *Server {
	s := &Server{
		store:      store,
		registerer: prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.retrievals = registerCounterVec(s.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "featurestore_online_retrievals_total",
		Help: "Online feature retrievals by feature view and outcome.",
	}, []string{"feature_view", "outcome"}))
	s.requests = registerCounterVec(s.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "featurestore_http_requests_total",
		Help: "HTTP requests by handler and status code.",
	}, []string{"handler", "code"}))

	s.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "featurestore_online_write_queue_depth",
		Help: "Commands waiting for the online store's write worker.",
	}, func() float64 {
		return float64(store.OnlineStore().QueueDepth())
	})
	if err := s.registerer.Register(s.queueDepth); err != nil {
		// a previously registered server already reports the depth
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
	}

	return s
}

// registerCounterVec registers the vec, reusing the already registered
// collector when a second server shares the registerer.
func registerCounterVec(r prometheus.Registerer, vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := r.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return vec
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_online_features", s.handleGetOnlineFeatures)
	mux.HandleFunc("/list_feature_view_versions/", s.handleListVersions)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type getOnlineFeaturesRequest struct {
	FeatureView  string      `json:"featureView"`
	EntityColumn string      `json:"entityColumn"`
	EntityValue  interface{} `json:"entityValue"`
	Version      int         `json:"version,omitempty"`
}

type getOnlineFeaturesResponse struct {
	FeatureView string                 `json:"featureView"`
	Version     int                    `json:"version"`
	Features    map[string]interface{} `json:"features"`
}

func (s *Server) handleGetOnlineFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "get_online_features", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req getOnlineFeaturesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "get_online_features", http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.FeatureView == "" || req.EntityColumn == "" || req.EntityValue == nil {
		s.writeError(w, "get_online_features", http.StatusBadRequest, "featureView, entityColumn and entityValue are required")
		return
	}

	features, version, err := s.store.GetOnlineFeatures(req.FeatureView, req.EntityColumn, req.EntityValue, req.Version)
	if err != nil {
		s.retrievals.WithLabelValues(req.FeatureView, "miss").Inc()
		switch {
		case errors.Is(err, featurestore.ErrFeatureViewNotFound):
			s.writeError(w, "get_online_features", http.StatusNotFound, fmt.Sprintf("feature view %s not found", req.FeatureView))
		case errors.Is(err, featurestore.ErrFeaturesNotFound):
			s.writeError(w, "get_online_features", http.StatusNotFound, fmt.Sprintf("no features for entity %v", req.EntityValue))
		default:
			s.logError("get online features error, view=%s, err=%v", req.FeatureView, err)
			s.writeError(w, "get_online_features", http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.retrievals.WithLabelValues(req.FeatureView, "hit").Inc()
	s.writeJSON(w, "get_online_features", http.StatusOK, getOnlineFeaturesResponse{
		FeatureView: req.FeatureView,
		Version:     version,
		Features:    features,
	})
}

type listVersionsResponse struct {
	FeatureView string `json:"featureView"`
	Versions    []int  `json:"versions"`
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "list_feature_view_versions", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/list_feature_view_versions/")
	if name == "" || strings.Contains(name, "/") {
		s.writeError(w, "list_feature_view_versions", http.StatusBadRequest, "feature view name is required")
		return
	}

	versions, err := s.store.ListFeatureViewVersions(name)
	if err != nil {
		s.writeError(w, "list_feature_view_versions", http.StatusNotFound, fmt.Sprintf("feature view %s not found", name))
		return
	}

	s.writeJSON(w, "list_feature_view_versions", http.StatusOK, listVersionsResponse{
		FeatureView: name,
		Versions:    versions,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, handler string, code int, msg string) {
	s.writeJSON(w, handler, code, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, handler string, code int, body interface{}) {
	s.requests.WithLabelValues(handler, fmt.Sprint(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logError("write response error, err=%v", err)
	}
}

func (s *Server) logError(format string, v ...interface{}) {
	if s.ErrorLogger != nil {
		s.ErrorLogger.Printf(format, v...)
		return
	}

	if s.Logger != nil {
		s.Logger.Printf(format, v...)
	}
}
