// Package featurestore ties the registry and the two stores into one serving
// engine: feature view lifecycle, point lookups with version resolution, and
// the wiring point for every component that needs them.
package featurestore

import (
	"errors"

	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/domain"
	"github.com/featuremesh/featurestore-go/offlinestore"
	"github.com/featuremesh/featurestore-go/onlinestore"
)

type Logger = domain.Logger

var (
	// ErrFeatureViewNotFound means the requested view name or version is
	// not registered.
	ErrFeatureViewNotFound = errors.New("feature view not found")

	// ErrFeaturesNotFound means the view exists but the entity has no row
	// in the online store.
	ErrFeaturesNotFound = errors.New("features not found")
)

type Option func(s *FeatureStore)

func WithLogger(l Logger) Option {
	return func(s *FeatureStore) {
		s.Logger = l
	}
}

func WithErrorLogger(l Logger) Option {
	return func(s *FeatureStore) {
		s.ErrorLogger = l
	}
}

// WithEntityTypes declares the column types of entity keys, used when tables
// are created for a registered view. Undeclared entity keys default to int64.
func WithEntityTypes(types map[string]constants.FSType) Option {
	return func(s *FeatureStore) {
		s.entityTypes = types
	}
}

type FeatureStore struct {
	registry *domain.FeatureViewRegistry
	online   *onlinestore.Store
	offline  offlinestore.OfflineStore

	entityTypes map[string]constants.FSType

	// Logger reports feature retrievals, ErrorLogger internal faults.
	Logger      Logger
	ErrorLogger Logger
}

func NewFeatureStore(registry *domain.FeatureViewRegistry, online *onlinestore.Store, offline offlinestore.OfflineStore, opts ...Option) *FeatureStore {
	s := &FeatureStore{
		registry: registry,
		online:   online,
		offline:  offline,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *FeatureStore) Registry() *domain.FeatureViewRegistry { return s.registry }
func (s *FeatureStore) OnlineStore() *onlinestore.Store       { return s.online }
func (s *FeatureStore) OfflineStore() offlinestore.OfflineStore {
	return s.offline
}

// ApplyFeatureView registers a new version of the view and enqueues table
// creation in both stores (create-if-absent; versions of a name share one
// table). Returns the stored view with its assigned version.
func (s *FeatureStore) ApplyFeatureView(view *domain.FeatureView) (*domain.FeatureView, error) {
	stored := s.registry.CreateFeatureView(view)
	schema := stored.TableSchema(s.entityTypes)

	if err := s.online.CreateTable(stored.Name, schema); err != nil {
		return nil, err
	}
	if err := s.offline.CreateTable(stored.Name, schema); err != nil {
		return nil, err
	}

	return stored, nil
}

// GetOnlineFeatures resolves the view (version 0 means latest) and does a
// point lookup for the entity. Absences surface as ErrFeatureViewNotFound or
// ErrFeaturesNotFound; store faults are logged and degrade to
// ErrFeaturesNotFound, favoring availability over strict error surfacing.
func (s *FeatureStore) GetOnlineFeatures(viewName string, entityColumn string, entityValue interface{}, version int) (map[string]interface{}, int, error) {
	var view *domain.FeatureView
	if version == 0 {
		view = s.registry.GetFeatureView(viewName)
	} else {
		view = s.registry.GetFeatureViewByVersion(viewName, version)
	}
	if view == nil {
		return nil, 0, ErrFeatureViewNotFound
	}

	features, err := s.online.GetOnlineFeatures(viewName, entityColumn, entityValue)
	if err != nil {
		s.logError("online lookup error, view=%s, entity=%v, err=%v", viewName, entityValue, err)
		features = nil
	}
	if features == nil {
		return nil, 0, ErrFeaturesNotFound
	}

	s.logInfo("retrieved features for %s, entity value: %v", viewName, entityValue)
	return features, view.Version, nil
}

// ListFeatureViewVersions returns the registered versions of a view in
// ascending order.
func (s *FeatureStore) ListFeatureViewVersions(viewName string) ([]int, error) {
	versions := s.registry.GetFeatureViewVersions(viewName)
	if len(versions) == 0 {
		return nil, ErrFeatureViewNotFound
	}
	return versions, nil
}

// Close drains the online store's write queue and releases the offline
// handle.
func (s *FeatureStore) Close() error {
	onlineErr := s.online.Close()
	offlineErr := s.offline.Close()
	if onlineErr != nil {
		return onlineErr
	}
	return offlineErr
}

func (s *FeatureStore) logInfo(format string, v ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, v...)
	}
}

func (s *FeatureStore) logError(format string, v ...interface{}) {
	if s.ErrorLogger != nil {
		s.ErrorLogger.Printf(format, v...)
		return
	}

	if s.Logger != nil {
		s.Logger.Printf(format, v...)
	}
}
