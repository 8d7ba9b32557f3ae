// Package checker samples entities per feature view and compares their
// offline and online values, reporting divergence between the two stores.
package checker

import (
	"math/rand"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/featuremesh/featurestore-go/domain"
	"github.com/featuremesh/featurestore-go/offlinestore"
)

const (
	DefaultSampleSize = 100

	// numeric values closer than this are considered equal
	DefaultTolerance = 1e-6
)

// Inconsistency is one observed divergence for a single entity/feature pair.
// Produced by a single check run, never persisted.
type Inconsistency struct {
	FeatureView  string
	EntityID     interface{}
	Feature      string
	OfflineValue interface{}
	OnlineValue  interface{}
}

// DriftSummary aggregates the magnitude of numeric offline/online deltas seen
// during one run, whether or not each delta exceeded the tolerance.
type DriftSummary struct {
	Compared int64
	P50      float64
	P95      float64
	Max      float64
}

// Result is the outcome of one check run. An empty Inconsistencies slice
// means the stores are in sync for everything sampled.
type Result struct {
	Inconsistencies []Inconsistency
	Drift           *DriftSummary
}

// OnlineReader is the point-lookup surface the checker needs from the online
// store.
type OnlineReader interface {
	GetOnlineFeatures(table string, entityColumn string, entityValue interface{}) (map[string]interface{}, error)
}

type CheckerOption func(c *Checker)

func WithSampleSize(n int) CheckerOption {
	return func(c *Checker) {
		if n > 0 {
			c.sampleSize = n
		}
	}
}

// WithRand fixes the sampling source, mainly for tests.
func WithRand(rng *rand.Rand) CheckerOption {
	return func(c *Checker) {
		c.rng = rng
	}
}

func WithTolerance(tolerance float64) CheckerOption {
	return func(c *Checker) {
		c.tolerance = tolerance
	}
}

func WithLogger(l domain.Logger) CheckerOption {
	return func(c *Checker) {
		c.Logger = l
	}
}

func WithErrorLogger(l domain.Logger) CheckerOption {
	return func(c *Checker) {
		c.ErrorLogger = l
	}
}

// Checker samples entities per registered feature view and flags mismatches.
// Multi-entity-key views are joined on their first entity column only; that
// is a documented limitation, not an oversight.
type Checker struct {
	registry *domain.FeatureViewRegistry
	offline  offlinestore.OfflineStore
	online   OnlineReader

	sampleSize int
	tolerance  float64
	rng        *rand.Rand

	Logger      domain.Logger
	ErrorLogger domain.Logger
}

func NewChecker(registry *domain.FeatureViewRegistry, offline offlinestore.OfflineStore, online OnlineReader, opts ...CheckerOption) *Checker {
	c := &Checker{
		registry:   registry,
		offline:    offline,
		online:     online,
		sampleSize: DefaultSampleSize,
		tolerance:  DefaultTolerance,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CheckConsistency runs one pass over every registered feature view (latest
// version) and returns the mismatches in iteration order: view registration
// order × entity sample order × feature declaration order.
func (c *Checker) CheckConsistency() []Inconsistency {
	return c.Check().Inconsistencies
}

// Check is CheckConsistency plus the numeric drift summary.
func (c *Checker) Check() Result {
	var inconsistencies []Inconsistency

	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		c.logError("create drift sketch error, err=%v", err)
		sketch = nil
	}
	var compared int64

	for _, name := range c.registry.ListFeatureViews() {
		view := c.registry.GetFeatureView(name)
		if view == nil || len(view.Entities) == 0 {
			continue
		}
		joinColumn := view.JoinEntity()

		allEntities, err := c.offline.GetAllEntityIds(view.Name, joinColumn)
		if err != nil {
			c.logError("list offline entities error, view=%s, err=%v", view.Name, err)
			continue
		}
		if len(allEntities) == 0 {
			continue
		}

		for _, entityID := range c.sample(allEntities) {
			offlineRows, err := c.offline.GetBatchFeatures(view.Name, joinColumn, []interface{}{entityID})
			if err != nil {
				c.logError("fetch offline features error, view=%s, entity=%v, err=%v", view.Name, entityID, err)
				continue
			}
			if len(offlineRows) == 0 {
				continue
			}
			// the offline store appends history; the last returned row is
			// the current offline truth
			offlineRow := offlineRows[len(offlineRows)-1]

			onlineRow, err := c.online.GetOnlineFeatures(view.Name, joinColumn, entityID)
			if err != nil {
				c.logError("fetch online features error, view=%s, entity=%v, err=%v", view.Name, entityID, err)
				onlineRow = nil
			}

			for _, feature := range view.Features {
				offlineValue := offlineRow[feature.Name]

				// an entity missing online is an automatic mismatch for
				// every feature of the view
				if onlineRow == nil {
					inconsistencies = append(inconsistencies, Inconsistency{
						FeatureView:  view.Name,
						EntityID:     entityID,
						Feature:      feature.Name,
						OfflineValue: offlineValue,
						OnlineValue:  nil,
					})
					continue
				}

				onlineValue := onlineRow[feature.Name]

				if a, b, ok := numericPair(offlineValue, onlineValue); ok {
					diff := a - b
					if diff < 0 {
						diff = -diff
					}
					compared++
					if sketch != nil {
						if err := sketch.Add(diff); err != nil {
							c.logError("drift sketch add error, err=%v", err)
						}
					}
				}

				if !c.isConsistent(offlineValue, onlineValue) {
					inconsistencies = append(inconsistencies, Inconsistency{
						FeatureView:  view.Name,
						EntityID:     entityID,
						Feature:      feature.Name,
						OfflineValue: offlineValue,
						OnlineValue:  onlineValue,
					})
				}
			}
		}
	}

	result := Result{Inconsistencies: inconsistencies}
	if sketch != nil && compared > 0 {
		summary := &DriftSummary{Compared: compared}
		if v, err := sketch.GetValueAtQuantile(0.5); err == nil {
			summary.P50 = v
		}
		if v, err := sketch.GetValueAtQuantile(0.95); err == nil {
			summary.P95 = v
		}
		if v, err := sketch.GetMaxValue(); err == nil {
			summary.Max = v
		}
		result.Drift = summary
	}
	return result
}

// sample draws min(sampleSize, len(ids)) entities uniformly without
// replacement.
func (c *Checker) sample(ids []interface{}) []interface{} {
	n := c.sampleSize
	if n > len(ids) {
		n = len(ids)
	}

	sampled := make([]interface{}, 0, n)
	for _, idx := range c.rng.Perm(len(ids))[:n] {
		sampled = append(sampled, ids[idx])
	}
	return sampled
}

func (c *Checker) logError(format string, v ...interface{}) {
	if c.ErrorLogger != nil {
		c.ErrorLogger.Printf(format, v...)
		return
	}

	if c.Logger != nil {
		c.Logger.Printf(format, v...)
	}
}
