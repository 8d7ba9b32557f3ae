package onlinestore

import (
	"fmt"

	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/datasource/duckdb"
	"github.com/featuremesh/featurestore-go/datasource/mysql"
	"github.com/featuremesh/featurestore-go/datasource/postgres"
	"github.com/featuremesh/featurestore-go/datasource/redisdb"
	"github.com/huandu/go-sqlbuilder"
)

// Driver is the storage backend behind a Store. CreateTable and Insert are
// invoked only by the store's single write worker; GetOnlineFeatures may be
// called concurrently from any goroutine.
type Driver interface {
	CreateTable(table string, schema map[string]constants.FSType) error
	Insert(table string, rows []map[string]interface{}) error
	GetOnlineFeatures(table string, entityColumn string, entityValue interface{}) (map[string]interface{}, error)
	Close() error
}

type DriverConfig struct {
	DatasourceType string

	// name of a registered datasource instance
	DatasourceName string

	// KeyColumns maps table name to its entity key column. Required by the
	// redis backend, which can only look rows up by their key column; SQL
	// backends can look up by any column and ignore it.
	KeyColumns map[string]string
}

// NewDriver builds the backend for the configured datasource type.
func NewDriver(config DriverConfig) (Driver, error) {
	switch config.DatasourceType {
	case constants.Datasource_Type_MySQL:
		m, err := mysql.GetMysql(config.DatasourceName)
		if err != nil {
			return nil, err
		}
		return newSQLDriver(config.DatasourceType, m.DB, sqlbuilder.MySQL), nil
	case constants.Datasource_Type_Postgres:
		p, err := postgres.GetPostgres(config.DatasourceName)
		if err != nil {
			return nil, err
		}
		return newSQLDriver(config.DatasourceType, p.DB, sqlbuilder.PostgreSQL), nil
	case constants.Datasource_Type_DuckDB:
		d, err := duckdb.GetDuckDB(config.DatasourceName)
		if err != nil {
			return nil, err
		}
		return newSQLDriver(config.DatasourceType, d.DB, sqlbuilder.PostgreSQL), nil
	case constants.Datasource_Type_Redis:
		r, err := redisdb.GetRedisClient(config.DatasourceName)
		if err != nil {
			return nil, err
		}
		return newRedisDriver(r.GetClient(), config.KeyColumns), nil
	case constants.Datasource_Type_Memory:
		return newMemoryDriver(), nil
	}

	return nil, fmt.Errorf("unknown online store datasource type:%s", config.DatasourceType)
}
