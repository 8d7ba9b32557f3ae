package onlinestore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/featuremesh/featurestore-go/constants"
	"github.com/go-redis/redis/v8"
)

// redisDriver keeps one hash per entity key, overwritten on every insert.
// That collapses append semantics into latest-value directly, which is all
// GetOnlineFeatures promises. Lookups are only possible by the table's
// configured key column.
type redisDriver struct {
	client     *redis.Client
	keyColumns map[string]string

	mu      sync.RWMutex
	schemas map[string]map[string]constants.FSType
}

func newRedisDriver(client *redis.Client, keyColumns map[string]string) *redisDriver {
	return &redisDriver{
		client:     client,
		keyColumns: keyColumns,
		schemas:    make(map[string]map[string]constants.FSType),
	}
}

func (d *redisDriver) CreateTable(table string, schema map[string]constants.FSType) error {
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
	return nil
}

func (d *redisDriver) rowKey(table string, keyValue interface{}) string {
	return fmt.Sprintf("%s:%v", table, keyValue)
}

func (d *redisDriver) Insert(table string, rows []map[string]interface{}) error {
	keyColumn, ok := d.keyColumns[table]
	if !ok {
		return fmt.Errorf("no key column configured for table:%s", table)
	}

	ctx := context.Background()
	for _, row := range rows {
		keyValue, ok := row[keyColumn]
		if !ok {
			return fmt.Errorf("row missing key column %s, table=%s", keyColumn, table)
		}

		fields := make(map[string]interface{}, len(row))
		for name, value := range row {
			fields[name] = encodeRedisValue(value)
		}
		if err := d.client.HSet(ctx, d.rowKey(table, keyValue), fields).Err(); err != nil {
			return fmt.Errorf("redis insert error, table=%s, err=%v", table, err)
		}
	}
	return nil
}

func (d *redisDriver) GetOnlineFeatures(table string, entityColumn string, entityValue interface{}) (map[string]interface{}, error) {
	keyColumn := d.keyColumns[table]
	if entityColumn != keyColumn {
		return nil, fmt.Errorf("redis online store only supports lookup by key column %s, got %s", keyColumn, entityColumn)
	}

	fields, err := d.client.HGetAll(context.Background(), d.rowKey(table, entityValue)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lookup error, table=%s, err=%v", table, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	d.mu.RLock()
	schema := d.schemas[table]
	d.mu.RUnlock()

	features := make(map[string]interface{}, len(fields))
	for name, raw := range fields {
		features[name] = decodeRedisValue(raw, schema[name])
	}
	return features, nil
}

func (d *redisDriver) Close() error {
	// the client belongs to the datasource registry
	return nil
}

func encodeRedisValue(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func decodeRedisValue(raw string, t constants.FSType) interface{} {
	switch t {
	case constants.FS_INT32, constants.FS_INT64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case constants.FS_FLOAT, constants.FS_DOUBLE:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case constants.FS_BOOLEAN:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case constants.FS_TIMESTAMP:
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts
		}
	}
	return raw
}
