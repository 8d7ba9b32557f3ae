package offlinestore

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/domain"
)

// memoryStore keeps full history in process memory. It backs tests and
// single-process demos; ExecuteQuery is not supported.
type memoryStore struct {
	mu      sync.RWMutex
	schemas map[string]map[string]constants.FSType
	tables  map[string][]map[string]interface{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		schemas: make(map[string]map[string]constants.FSType),
		tables:  make(map[string][]map[string]interface{}),
	}
}

func (s *memoryStore) CreateTable(table string, schema map[string]constants.FSType) error {
	if table == "" {
		return &domain.ValidationError{Op: "create_table", Reason: "empty table name"}
	}
	if len(schema) == 0 {
		return &domain.ValidationError{Op: "create_table", Reason: "empty schema"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[table]; ok {
		return nil
	}
	copied := make(map[string]constants.FSType, len(schema))
	for name, t := range schema {
		copied[name] = t
	}
	s.schemas[table] = copied
	s.tables[table] = nil
	return nil
}

func (s *memoryStore) InsertData(table string, record map[string]interface{}) error {
	if len(record) == 0 {
		return &domain.ValidationError{Op: "insert", Reason: "record must be a non-empty map"}
	}
	return s.InsertBatch(table, []map[string]interface{}{record})
}

func (s *memoryStore) InsertBatch(table string, rows []map[string]interface{}) error {
	if table == "" {
		return &domain.ValidationError{Op: "insert", Reason: "empty table name"}
	}
	if len(rows) == 0 {
		return &domain.ValidationError{Op: "insert", Reason: "row batch must be non-empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[table]; !ok {
		return &domain.StoreUnavailableError{Store: "offline", Op: "insert", Err: fmt.Errorf("table not found:%s", table)}
	}
	for _, row := range rows {
		if len(row) == 0 {
			return &domain.ValidationError{Op: "insert", Reason: "row batch contains an empty row"}
		}
		copied := make(map[string]interface{}, len(row))
		for name, value := range row {
			copied[name] = value
		}
		s.tables[table] = append(s.tables[table], copied)
	}
	return nil
}

func (s *memoryStore) GetBatchFeatures(table string, entityColumn string, entityValues []interface{}) ([]map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []map[string]interface{}
	for _, row := range s.tables[table] {
		for _, want := range entityValues {
			if reflect.DeepEqual(row[entityColumn], want) {
				copied := make(map[string]interface{}, len(row))
				for name, value := range row {
					copied[name] = value
				}
				result = append(result, copied)
				break
			}
		}
	}
	return result, nil
}

func (s *memoryStore) GetAllEntityIds(table string, entityColumn string) ([]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[interface{}]struct{})
	var ids []interface{}
	for _, row := range s.tables[table] {
		id := row[entityColumn]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	return nil, &domain.StoreUnavailableError{
		Store: "offline",
		Op:    "execute_query",
		Err:   fmt.Errorf("memory store does not support raw queries"),
	}
}

func (s *memoryStore) RowCount(table string, filter string) (int, error) {
	_, count, err := s.RowCountIds(table, "", filter)
	return count, err
}

func (s *memoryStore) RowCountIds(table string, entityColumn string, filter string) ([]interface{}, int, error) {
	s.mu.RLock()
	rows := s.tables[table]
	s.mu.RUnlock()

	var program *filterProgram
	if filter != "" {
		var err error
		program, err = compileFilter(filter)
		if err != nil {
			return nil, 0, &domain.ValidationError{Op: "row_count", Reason: err.Error()}
		}
	}

	var ids []interface{}
	count := 0
	for _, row := range rows {
		if program != nil {
			ok, err := program.Match(row)
			if err != nil {
				return nil, 0, &domain.ValidationError{Op: "row_count", Reason: err.Error()}
			}
			if !ok {
				continue
			}
		}
		count++
		if entityColumn != "" {
			ids = append(ids, row[entityColumn])
		}
	}
	return ids, count, nil
}

func (s *memoryStore) Close() error {
	return nil
}
