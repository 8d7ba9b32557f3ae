package domain

import (
	"time"

	"github.com/featuremesh/featurestore-go/constants"
)

// Feature is a single typed attribute of a feature view. Features are
// immutable once the view they belong to has been registered.
type Feature struct {
	Name  string
	Dtype constants.FSType
}

// FeatureView is a named, versioned schema of entity-keyed attributes.
// Version and CreatedAt are assigned by the registry, never by callers.
type FeatureView struct {
	Name      string
	Features  []Feature
	Entities  []string
	TTL       int // seconds, declared metadata only
	Version   int
	CreatedAt time.Time
}

// FeatureNames returns the declared feature names in declaration order.
func (v *FeatureView) FeatureNames() []string {
	names := make([]string, len(v.Features))
	for i, f := range v.Features {
		names[i] = f.Name
	}
	return names
}

// JoinEntity returns the entity column used as the join key for store
// lookups. Views with multiple entity keys are joined on the first one only.
func (v *FeatureView) JoinEntity() string {
	if len(v.Entities) == 0 {
		return ""
	}
	return v.Entities[0]
}

// TableSchema builds the column type map for the view's backing tables:
// entity key columns plus declared features. Entity columns missing from
// entityTypes default to FS_INT64.
func (v *FeatureView) TableSchema(entityTypes map[string]constants.FSType) map[string]constants.FSType {
	schema := make(map[string]constants.FSType, len(v.Entities)+len(v.Features))
	for _, entity := range v.Entities {
		if t, ok := entityTypes[entity]; ok {
			schema[entity] = t
		} else {
			schema[entity] = constants.FS_INT64
		}
	}
	for _, f := range v.Features {
		schema[f.Name] = f.Dtype
	}
	return schema
}

func (v *FeatureView) clone() *FeatureView {
	view := *v
	view.Features = append([]Feature(nil), v.Features...)
	view.Entities = append([]string(nil), v.Entities...)
	return &view
}
