package onlinestore

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/featuremesh/featurestore-go/constants"
)

// memoryDriver is an embedded backend for tests and single-process demos.
// Rows are appended per table; lookups scan from the newest row backwards,
// which gives freshest-row-wins without any sequence bookkeeping.
type memoryDriver struct {
	mu      sync.RWMutex
	schemas map[string]map[string]constants.FSType
	tables  map[string][]map[string]interface{}
}

func newMemoryDriver() *memoryDriver {
	return &memoryDriver{
		schemas: make(map[string]map[string]constants.FSType),
		tables:  make(map[string][]map[string]interface{}),
	}
}

func (d *memoryDriver) CreateTable(table string, schema map[string]constants.FSType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.schemas[table]; ok {
		return nil
	}
	copied := make(map[string]constants.FSType, len(schema))
	for name, t := range schema {
		copied[name] = t
	}
	d.schemas[table] = copied
	d.tables[table] = nil
	return nil
}

func (d *memoryDriver) Insert(table string, rows []map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.schemas[table]; !ok {
		return fmt.Errorf("table not found:%s", table)
	}
	for _, row := range rows {
		copied := make(map[string]interface{}, len(row))
		for name, value := range row {
			copied[name] = value
		}
		d.tables[table] = append(d.tables[table], copied)
	}
	return nil
}

func (d *memoryDriver) GetOnlineFeatures(table string, entityColumn string, entityValue interface{}) (map[string]interface{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows := d.tables[table]
	for i := len(rows) - 1; i >= 0; i-- {
		if sameScalar(rows[i][entityColumn], entityValue) {
			features := make(map[string]interface{}, len(rows[i]))
			for name, value := range rows[i] {
				features[name] = value
			}
			return features, nil
		}
	}
	return nil, nil
}

func (d *memoryDriver) Close() error {
	return nil
}

// sameScalar matches lookup values loosely across integer widths, the way a
// SQL backend would coerce them.
func sameScalar(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
