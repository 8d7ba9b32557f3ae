package featurestore

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"

	"fortio.org/assert"
	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/domain"
	"github.com/featuremesh/featurestore-go/offlinestore"
	"github.com/featuremesh/featurestore-go/onlinestore"
)

func newTestStore(t *testing.T, opts ...Option) *FeatureStore {
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

	return NewFeatureStore(domain.NewFeatureViewRegistry(), online, offline, opts...)
}

func customerView() *domain.FeatureView {
	return &domain.FeatureView{
		Name: "customer_features",
		Features: []domain.Feature{
			{Name: "age", Dtype: constants.FS_INT64},
			{Name: "total_purchases", Dtype: constants.FS_DOUBLE},
		},
		Entities: []string{"customer_id"},
		TTL:      86400,
	}
}

func TestApplyFeatureViewAssignsVersions(t *testing.T) {
	s := newTestStore(t)

	v1, err := s.ApplyFeatureView(customerView())
	assert.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	v2, err := s.ApplyFeatureView(customerView())
	assert.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	versions, err := s.ListFeatureViewVersions("customer_features")
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
}

func TestListVersionsUnknownView(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ListFeatureViewVersions("nope")
	assert.True(t, errors.Is(err, ErrFeatureViewNotFound))
}

func TestGetOnlineFeatures(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.ApplyFeatureView(customerView()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyFeatureView(customerView()); err != nil {
		t.Fatal(err)
	}

	record := map[string]interface{}{"customer_id": 7, "age": 30, "total_purchases": 12.5}
	assert.NoError(t, s.OnlineStore().InsertData("customer_features", record))
	if err := s.OnlineStore().Close(); err != nil { // drain the write queue
		t.Fatal(err)
	}

	// version 0 resolves to latest
	features, version, err := s.GetOnlineFeatures("customer_features", "customer_id", 7, 0)
	assert.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Equal(t, 30, features["age"])
	assert.Equal(t, 12.5, features["total_purchases"])

	// explicit version pinning
	_, version, err = s.GetOnlineFeatures("customer_features", "customer_id", 7, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, version)

	_, _, err = s.GetOnlineFeatures("customer_features", "customer_id", 7, 9)
	assert.True(t, errors.Is(err, ErrFeatureViewNotFound))

	_, _, err = s.GetOnlineFeatures("unknown_view", "customer_id", 7, 0)
	assert.True(t, errors.Is(err, ErrFeatureViewNotFound))

	_, _, err = s.GetOnlineFeatures("customer_features", "customer_id", 404, 0)
	assert.True(t, errors.Is(err, ErrFeaturesNotFound))
}

type faultyReader struct {
	onlinestore.Driver
}

func (f *faultyReader) CreateTable(table string, schema map[string]constants.FSType) error {
	return nil
}

func (f *faultyReader) GetOnlineFeatures(table string, entityColumn string, entityValue interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("connection refused")
}

func (f *faultyReader) Close() error { return nil }

func TestStoreFaultDegradesToNotFound(t *testing.T) {
	offline, err := offlinestore.NewOfflineStore(offlinestore.Config{
		DatasourceType: constants.Datasource_Type_Memory,
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	online := onlinestore.NewStore(&faultyReader{})
	s := NewFeatureStore(domain.NewFeatureViewRegistry(), online, offline,
		WithErrorLogger(log.New(&buf, "", 0)))

	if _, err := s.ApplyFeatureView(customerView()); err != nil {
		t.Fatal(err)
	}

	_, _, err = s.GetOnlineFeatures("customer_features", "customer_id", 7, 0)
	assert.True(t, errors.Is(err, ErrFeaturesNotFound))
	assert.True(t, strings.Contains(buf.String(), "connection refused"))
}

func TestRetrievalLogging(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(t, WithLogger(log.New(&buf, "", 0)))
	if _, err := s.ApplyFeatureView(customerView()); err != nil {
		t.Fatal(err)
	}

	assert.NoError(t, s.OnlineStore().InsertData("customer_features",
		map[string]interface{}{"customer_id": 1, "age": 30, "total_purchases": 1.0}))
	if err := s.OnlineStore().Close(); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.GetOnlineFeatures("customer_features", "customer_id", 1, 0); err != nil {
		t.Fatal(err)
	}
	assert.True(t, strings.Contains(buf.String(), "customer_features"))
}
