package checker

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"fortio.org/assert"
	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/datasource/duckdb"
	"github.com/featuremesh/featurestore-go/domain"
	"github.com/featuremesh/featurestore-go/offlinestore"
	"github.com/featuremesh/featurestore-go/onlinestore"
)

func TestIsConsistentTolerance(t *testing.T) {
	assert.True(t, IsConsistent(1.0000001, 1.0000002))
	assert.False(t, IsConsistent(1.0, 1.1))
	assert.True(t, IsConsistent("a", "a"))
	assert.False(t, IsConsistent("a", "b"))

	// mixed numeric kinds compare numerically
	assert.True(t, IsConsistent(int64(30), 30))
	assert.True(t, IsConsistent(30, 30.0))
	assert.False(t, IsConsistent(30, nil))

	// byte slices compare as text
	assert.True(t, IsConsistent([]byte("a"), "a"))
}

type fixture struct {
	registry *domain.FeatureViewRegistry
	offline  offlinestore.OfflineStore
	online   *onlinestore.Store
}

func newFixture(t *testing.T, features []domain.Feature) *fixture {
	t.Helper()

	registry := domain.NewFeatureViewRegistry()
	view := registry.CreateFeatureView(&domain.FeatureView{
		Name:     "v1",
		Features: features,
		Entities: []string{"customer_id"},
		TTL:      86400,
	})

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

	schema := view.TableSchema(nil)
	if err := offline.CreateTable("v1", schema); err != nil {
		t.Fatal(err)
	}
	if err := online.CreateTable("v1", schema); err != nil {
		t.Fatal(err)
	}

	return &fixture{registry: registry, offline: offline, online: online}
}

func (f *fixture) checker(opts ...CheckerOption) *Checker {
	opts = append([]CheckerOption{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	return NewChecker(f.registry, f.offline, f.online, opts...)
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t, []domain.Feature{{Name: "age", Dtype: constants.FS_INT64}})

	record := map[string]interface{}{"customer_id": 1, "age": 30}
	assert.NoError(t, f.offline.InsertData("v1", record))
	assert.NoError(t, f.online.InsertData("v1", record))
	if err := f.online.Close(); err != nil { // drain the write queue
		t.Fatal(err)
	}

	features, err := f.online.GetOnlineFeatures("v1", "customer_id", 1)
	assert.NoError(t, err)
	assert.Equal(t, 30, features["age"])
	assert.Equal(t, 1, features["customer_id"])

	result := f.checker().Check()
	assert.Equal(t, 0, len(result.Inconsistencies))
	if result.Drift == nil {
		t.Fatal("expected drift summary for numeric comparison")
	}
	assert.Equal(t, int64(1), result.Drift.Compared)

	// a newer offline-only write must surface as exactly one mismatch
	assert.NoError(t, f.offline.InsertData("v1", map[string]interface{}{"customer_id": 1, "age": 31}))

	inconsistencies := f.checker().CheckConsistency()
	if len(inconsistencies) != 1 {
		t.Fatalf("expected 1 inconsistency, got %d", len(inconsistencies))
	}
	inc := inconsistencies[0]
	assert.Equal(t, "v1", inc.FeatureView)
	assert.Equal(t, 1, inc.EntityID)
	assert.Equal(t, "age", inc.Feature)
	assert.Equal(t, 31, inc.OfflineValue)
	assert.Equal(t, 30, inc.OnlineValue)
}

func TestMissingOnlineEntityIsAMismatchPerFeature(t *testing.T) {
	f := newFixture(t, []domain.Feature{
		{Name: "age", Dtype: constants.FS_INT64},
		{Name: "total_purchases", Dtype: constants.FS_DOUBLE},
	})

	assert.NoError(t, f.offline.InsertData("v1", map[string]interface{}{
		"customer_id": 7, "age": 30, "total_purchases": 10.0,
	}))
	if err := f.online.Close(); err != nil {
		t.Fatal(err)
	}

	inconsistencies := f.checker().CheckConsistency()
	assert.Equal(t, 2, len(inconsistencies))
	assert.Equal(t, "age", inconsistencies[0].Feature)
	assert.Equal(t, "total_purchases", inconsistencies[1].Feature)
	for _, inc := range inconsistencies {
		assert.Equal(t, 7, inc.EntityID)
		assert.True(t, inc.OnlineValue == nil)
	}
}

func TestViewWithoutOfflineEntitiesContributesNothing(t *testing.T) {
	f := newFixture(t, []domain.Feature{{Name: "age", Dtype: constants.FS_INT64}})
	defer f.online.Close()

	assert.Equal(t, 0, len(f.checker().CheckConsistency()))
}

// countingOffline counts per-entity fetches so the sample bound is visible.
type countingOffline struct {
	offlinestore.OfflineStore
	fetches int
}

func (c *countingOffline) GetBatchFeatures(table, entityColumn string, entityValues []interface{}) ([]map[string]interface{}, error) {
	c.fetches++
	return c.OfflineStore.GetBatchFeatures(table, entityColumn, entityValues)
}

func TestSampleBound(t *testing.T) {
	f := newFixture(t, []domain.Feature{{Name: "age", Dtype: constants.FS_INT64}})
	defer f.online.Close()

	for id := 0; id < 250; id++ {
		assert.NoError(t, f.offline.InsertData("v1", map[string]interface{}{"customer_id": id, "age": id}))
	}

	counting := &countingOffline{OfflineStore: f.offline}
	c := NewChecker(f.registry, counting, f.online,
		WithRand(rand.New(rand.NewSource(1))), WithSampleSize(10))
	c.CheckConsistency()
	assert.Equal(t, 10, counting.fetches)

	// sample never exceeds the population either
	counting.fetches = 0
	c = NewChecker(f.registry, counting, f.online,
		WithRand(rand.New(rand.NewSource(1))), WithSampleSize(1000))
	c.CheckConsistency()
	assert.Equal(t, 250, counting.fetches)
}

func TestReportInconsistencies(t *testing.T) {
	var buf bytes.Buffer
	ReportInconsistencies(&buf, Result{})
	assert.True(t, strings.Contains(buf.String(), "in sync"))

	buf.Reset()
	ReportInconsistencies(&buf, Result{Inconsistencies: []Inconsistency{{
		FeatureView:  "v1",
		EntityID:     1,
		Feature:      "age",
		OfflineValue: 31,
		OnlineValue:  30,
	}}})
	out := buf.String()
	assert.True(t, strings.Contains(out, "Found 1 inconsistencies:"))
	assert.True(t, strings.Contains(out, "Feature View: v1"))
	assert.True(t, strings.Contains(out, "Offline Value: 31"))
	assert.True(t, strings.Contains(out, "Online Value: 30"))
}

func TestCheckAgainstDuckDBOffline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")
	if err := duckdb.RegisterDuckDB("checker", path); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { duckdb.RemoveDuckDB("checker") })

	offline, err := offlinestore.NewOfflineStore(offlinestore.Config{
		DatasourceType: constants.Datasource_Type_DuckDB,
		DatasourceName: "checker",
	})
	if err != nil {
		t.Fatal(err)
	}

	registry := domain.NewFeatureViewRegistry()
	view := registry.CreateFeatureView(&domain.FeatureView{
		Name:     "v1",
		Features: []domain.Feature{{Name: "age", Dtype: constants.FS_INT64}},
		Entities: []string{"customer_id"},
	})

	driver, err := onlinestore.NewDriver(onlinestore.DriverConfig{
		DatasourceType: constants.Datasource_Type_Memory,
	})
	if err != nil {
		t.Fatal(err)
	}
	online := onlinestore.NewStore(driver)

	schema := view.TableSchema(nil)
	assert.NoError(t, offline.CreateTable("v1", schema))
	assert.NoError(t, online.CreateTable("v1", schema))

	assert.NoError(t, online.InsertData("v1", map[string]interface{}{"customer_id": 1, "age": 30}))
	if err := online.Close(); err != nil {
		t.Fatal(err)
	}

	// many offline writes for the same entity: the latest one, not an
	// arbitrary scan-ordered one, is the offline truth
	for age := 30; age <= 45; age++ {
		assert.NoError(t, offline.InsertData("v1", map[string]interface{}{"customer_id": 1, "age": age}))
	}

	c := NewChecker(registry, offline, online, WithRand(rand.New(rand.NewSource(1))))
	inconsistencies := c.CheckConsistency()
	if len(inconsistencies) != 1 {
		t.Fatalf("expected 1 inconsistency, got %d", len(inconsistencies))
	}
	assert.Equal(t, int64(45), inconsistencies[0].OfflineValue)
	assert.Equal(t, 30, inconsistencies[0].OnlineValue)
}
