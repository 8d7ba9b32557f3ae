// Package offlinestore implements the append-only historical store. It is
// the system of record: every write is retained, and batch queries serve
// training-time extraction and consistency auditing.
package offlinestore

import (
	"fmt"

	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/domain"
)

// OfflineStore is the batch/historical query surface. Lookups that find
// nothing return empty results with a nil error; connectivity failures come
// back as *domain.StoreUnavailableError.
type OfflineStore interface {
	CreateTable(table string, schema map[string]constants.FSType) error
	InsertData(table string, record map[string]interface{}) error
	InsertBatch(table string, rows []map[string]interface{}) error
	GetBatchFeatures(table string, entityColumn string, entityValues []interface{}) ([]map[string]interface{}, error)
	GetAllEntityIds(table string, entityColumn string) ([]interface{}, error)
	ExecuteQuery(query string) ([]map[string]interface{}, error)

	// RowCount counts rows matching a filter expression, RowCountIds
	// additionally returns the matching entity keys.
	RowCount(table string, filter string) (int, error)
	RowCountIds(table string, entityColumn string, filter string) ([]interface{}, int, error)

	Close() error
}

type Config struct {
	DatasourceType string
	DatasourceName string
}

type StoreOption func(s *sqlStore)

func WithLogger(l domain.Logger) StoreOption {
	return func(s *sqlStore) {
		s.Logger = l
	}
}

func WithErrorLogger(l domain.Logger) StoreOption {
	return func(s *sqlStore) {
		s.ErrorLogger = l
	}
}

// NewOfflineStore builds the store for the configured datasource type. SQL
// datasources are acquired lazily on first use, so the store can be built
// before its datasource has been registered.
func NewOfflineStore(config Config, opts ...StoreOption) (OfflineStore, error) {
	switch config.DatasourceType {
	case constants.Datasource_Type_DuckDB, constants.Datasource_Type_Postgres:
		s := newSQLStore(config.DatasourceType, config.DatasourceName)
		for _, opt := range opts {
			opt(s)
		}
		return s, nil
	case constants.Datasource_Type_Memory:
		return newMemoryStore(), nil
	}

	return nil, fmt.Errorf("unknown offline store datasource type:%s", config.DatasourceType)
}
