package offlinestore

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/datasource/duckdb"
	"github.com/featuremesh/featurestore-go/datasource/postgres"
	"github.com/featuremesh/featurestore-go/domain"
	"github.com/featuremesh/featurestore-go/utils"
	"github.com/huandu/go-sqlbuilder"
)

// seqColumn orders appended rows so "latest row" stays well defined: SQL row
// order without ORDER BY is undefined. Internal, stripped from results.
const seqColumn = "fs_seq"

// sqlStore serves DuckDB and Postgres datasources. The handle is acquired
// on demand and re-acquired after loss, so a temporarily missing backend
// degrades queries to empty results instead of failing construction.
type sqlStore struct {
	datasourceType string
	datasourceName string
	flavor         sqlbuilder.Flavor

	Logger      domain.Logger
	ErrorLogger domain.Logger

	mu sync.Mutex
	db *sql.DB

	seq int64
}

func newSQLStore(datasourceType, datasourceName string) *sqlStore {
	return &sqlStore{
		datasourceType: datasourceType,
		datasourceName: datasourceName,
		flavor:         sqlbuilder.PostgreSQL,
		seq:            time.Now().UnixNano(),
	}
}

func (s *sqlStore) nextSeq() int64 {
	return atomic.AddInt64(&s.seq, 1)
}

func (s *sqlStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	switch s.datasourceType {
	case constants.Datasource_Type_DuckDB:
		d, err := duckdb.GetDuckDB(s.datasourceName)
		if err != nil {
			return nil, err
		}
		s.db = d.DB
	case constants.Datasource_Type_Postgres:
		p, err := postgres.GetPostgres(s.datasourceName)
		if err != nil {
			return nil, err
		}
		s.db = p.DB
	default:
		return nil, fmt.Errorf("unknown offline datasource type:%s", s.datasourceType)
	}

	return s.db, nil
}

func (s *sqlStore) unavailable(op string, err error) *domain.StoreUnavailableError {
	fault := &domain.StoreUnavailableError{Store: "offline", Op: op, Err: err}
	s.logError("%v", fault)
	return fault
}

func columnType(t constants.FSType) string {
	switch t {
	case constants.FS_INT32:
		return "INTEGER"
	case constants.FS_INT64:
		return "BIGINT"
	case constants.FS_FLOAT:
		return "REAL"
	case constants.FS_DOUBLE:
		return "DOUBLE PRECISION"
	case constants.FS_STRING:
		return "TEXT"
	case constants.FS_BOOLEAN:
		return "BOOLEAN"
	case constants.FS_TIMESTAMP:
		return "TIMESTAMP"
	}
	return "TEXT"
}

func (s *sqlStore) CreateTable(table string, schema map[string]constants.FSType) error {
	if table == "" {
		return &domain.ValidationError{Op: "create_table", Reason: "empty table name"}
	}
	if len(schema) == 0 {
		return &domain.ValidationError{Op: "create_table", Reason: "empty schema"}
	}

	db, err := s.handle()
	if err != nil {
		return s.unavailable("create_table", err)
	}

	columns := make([]string, 0, len(schema))
	for name := range schema {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	ctb := sqlbuilder.NewCreateTableBuilder()
	ctb.CreateTable(table).IfNotExists()
	for _, name := range columns {
		ctb.Define(name, columnType(schema[name]))
	}
	ctb.Define(seqColumn, "BIGINT", "NOT NULL")

	query, args := ctb.BuildWithFlavor(s.flavor)
	if _, err := db.Exec(query, args...); err != nil {
		return s.unavailable("create_table", err)
	}
	return nil
}

func (s *sqlStore) InsertData(table string, record map[string]interface{}) error {
	if len(record) == 0 {
		return &domain.ValidationError{Op: "insert", Reason: "record must be a non-empty map"}
	}
	return s.InsertBatch(table, []map[string]interface{}{record})
}

func (s *sqlStore) InsertBatch(table string, rows []map[string]interface{}) error {
	if table == "" {
		return &domain.ValidationError{Op: "insert", Reason: "empty table name"}
	}
	if len(rows) == 0 {
		return &domain.ValidationError{Op: "insert", Reason: "row batch must be non-empty"}
	}

	db, err := s.handle()
	if err != nil {
		return s.unavailable("insert", err)
	}

	for _, row := range rows {
		if len(row) == 0 {
			return &domain.ValidationError{Op: "insert", Reason: "row batch contains an empty row"}
		}

		columns := make([]string, 0, len(row))
		for name := range row {
			columns = append(columns, name)
		}
		sort.Strings(columns)

		values := make([]interface{}, 0, len(row)+1)
		for _, name := range columns {
			values = append(values, row[name])
		}
		columns = append(columns, seqColumn)
		values = append(values, s.nextSeq())

		ib := sqlbuilder.NewInsertBuilder()
		ib.InsertInto(table).Cols(columns...).Values(values...)

		query, args := ib.BuildWithFlavor(s.flavor)
		if _, err := db.Exec(query, args...); err != nil {
			return s.unavailable("insert", err)
		}
	}
	return nil
}

func (s *sqlStore) GetBatchFeatures(table string, entityColumn string, entityValues []interface{}) ([]map[string]interface{}, error) {
	if len(entityValues) == 0 {
		return nil, nil
	}

	db, err := s.handle()
	if err != nil {
		return nil, s.unavailable("get_batch_features", err)
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("*").From(table)
	sb.Where(sb.In(entityColumn, entityValues...))
	// oldest first, so the last returned row per entity is the latest write
	sb.OrderBy(seqColumn).Asc()

	query, args := sb.BuildWithFlavor(s.flavor)
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, s.unavailable("get_batch_features", err)
	}
	defer rows.Close()

	result, err := utils.ScanRows(rows)
	if err != nil {
		return nil, s.unavailable("get_batch_features", err)
	}
	for _, row := range result {
		delete(row, seqColumn)
	}
	return result, nil
}

func (s *sqlStore) GetAllEntityIds(table string, entityColumn string) ([]interface{}, error) {
	db, err := s.handle()
	if err != nil {
		return nil, s.unavailable("get_all_entity_ids", err)
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(entityColumn).Distinct().From(table)

	query, args := sb.BuildWithFlavor(s.flavor)
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, s.unavailable("get_all_entity_ids", err)
	}
	defer rows.Close()

	result, err := utils.ScanRows(rows)
	if err != nil {
		return nil, s.unavailable("get_all_entity_ids", err)
	}

	ids := make([]interface{}, 0, len(result))
	for _, row := range result {
		ids = append(ids, row[entityColumn])
	}
	return ids, nil
}

// ExecuteQuery runs a raw query. Escape hatch for ad-hoc analysis; nothing in
// the serving or checking paths uses it.
func (s *sqlStore) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	db, err := s.handle()
	if err != nil {
		return nil, s.unavailable("execute_query", err)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, s.unavailable("execute_query", err)
	}
	defer rows.Close()

	result, err := utils.ScanRows(rows)
	if err != nil {
		return nil, s.unavailable("execute_query", err)
	}
	return result, nil
}

func (s *sqlStore) RowCount(table string, filter string) (int, error) {
	_, count, err := s.rowsMatching(table, "", filter)
	return count, err
}

func (s *sqlStore) RowCountIds(table string, entityColumn string, filter string) ([]interface{}, int, error) {
	return s.rowsMatching(table, entityColumn, filter)
}

func (s *sqlStore) rowsMatching(table string, entityColumn string, filter string) ([]interface{}, int, error) {
	db, err := s.handle()
	if err != nil {
		return nil, 0, s.unavailable("row_count", err)
	}

	if filter == "" && entityColumn == "" {
		sb := sqlbuilder.NewSelectBuilder()
		sb.Select("COUNT(*)").From(table)
		query, args := sb.BuildWithFlavor(s.flavor)

		var count int
		if err := db.QueryRow(query, args...).Scan(&count); err != nil {
			return nil, 0, s.unavailable("row_count", err)
		}
		return nil, count, nil
	}

	var program *filterProgram
	if filter != "" {
		program, err = compileFilter(filter)
		if err != nil {
			return nil, 0, &domain.ValidationError{Op: "row_count", Reason: err.Error()}
		}
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(scanColumns(program, entityColumn)...).From(table)
	query, args := sb.BuildWithFlavor(s.flavor)
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, s.unavailable("row_count", err)
	}
	defer rows.Close()

	scanned, err := utils.ScanRows(rows)
	if err != nil {
		return nil, 0, s.unavailable("row_count", err)
	}

	var ids []interface{}
	count := 0
	for _, row := range scanned {
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

// scanColumns narrows the scan to the columns the filter references plus
// the entity column. Filters that reference no column fall back to a full
// row scan.
func scanColumns(program *filterProgram, entityColumn string) []string {
	if program == nil || len(program.variables) == 0 {
		return []string{"*"}
	}

	columns := make([]string, 0, len(program.variables)+1)
	columns = append(columns, program.variables...)
	if entityColumn != "" {
		seen := false
		for _, c := range columns {
			if c == entityColumn {
				seen = true
				break
			}
		}
		if !seen {
			columns = append(columns, entityColumn)
		}
	}
	return columns
}

func (s *sqlStore) Close() error {
	// handles belong to the datasource registry
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = nil
	return nil
}

func (s *sqlStore) logError(format string, v ...interface{}) {
	if s.ErrorLogger != nil {
		s.ErrorLogger.Printf(format, v...)
		return
	}

	if s.Logger != nil {
		s.Logger.Printf(format, v...)
	}
}
