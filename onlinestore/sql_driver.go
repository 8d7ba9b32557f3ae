package onlinestore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/utils"
	"github.com/huandu/go-sqlbuilder"
)

// seqColumn orders appended rows so "freshest row wins" stays well defined
// even when duplicate entity keys accumulate. It is internal and stripped
// from every result.
const seqColumn = "fs_seq"

// sqlDriver serves any database/sql backend. Writes go through a dedicated
// connection owned by the store worker; reads run on the pool.
type sqlDriver struct {
	name   string
	db     *sql.DB
	flavor sqlbuilder.Flavor

	writeConn *sql.Conn
	seq       int64
}

func newSQLDriver(name string, db *sql.DB, flavor sqlbuilder.Flavor) *sqlDriver {
	return &sqlDriver{
		name:   name,
		db:     db,
		flavor: flavor,
		seq:    time.Now().UnixNano(),
	}
}

func (d *sqlDriver) writer() (*sql.Conn, error) {
	if d.writeConn != nil {
		return d.writeConn, nil
	}
	conn, err := d.db.Conn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("acquire write connection error, err=%v", err)
	}
	d.writeConn = conn
	return conn, nil
}

func (d *sqlDriver) nextSeq() int64 {
	return atomic.AddInt64(&d.seq, 1)
}

func (d *sqlDriver) columnType(t constants.FSType) string {
	switch t {
	case constants.FS_INT32:
		return "INTEGER"
	case constants.FS_INT64:
		return "BIGINT"
	case constants.FS_FLOAT:
		if d.flavor == sqlbuilder.MySQL {
			return "FLOAT"
		}
		return "REAL"
	case constants.FS_DOUBLE:
		if d.flavor == sqlbuilder.MySQL {
			return "DOUBLE"
		}
		return "DOUBLE PRECISION"
	case constants.FS_STRING:
		if d.flavor == sqlbuilder.MySQL {
			return "VARCHAR(1024)"
		}
		return "TEXT"
	case constants.FS_BOOLEAN:
		return "BOOLEAN"
	case constants.FS_TIMESTAMP:
		return "TIMESTAMP"
	}
	return "TEXT"
}

func (d *sqlDriver) CreateTable(table string, schema map[string]constants.FSType) error {
	conn, err := d.writer()
	if err != nil {
		return err
	}

	columns := make([]string, 0, len(schema))
	for name := range schema {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	ctb := sqlbuilder.NewCreateTableBuilder()
	ctb.CreateTable(table).IfNotExists()
	ctb.Define(seqColumn, "BIGINT", "NOT NULL")
	for _, name := range columns {
		ctb.Define(name, d.columnType(schema[name]))
	}

	query, args := ctb.BuildWithFlavor(d.flavor)
	if _, err := conn.ExecContext(context.Background(), query, args...); err != nil {
		return fmt.Errorf("create table error, table=%s, err=%v", table, err)
	}
	return nil
}

func (d *sqlDriver) Insert(table string, rows []map[string]interface{}) error {
	conn, err := d.writer()
	if err != nil {
		return err
	}

	for _, row := range rows {
		columns := make([]string, 0, len(row)+1)
		for name := range row {
			columns = append(columns, name)
		}
		sort.Strings(columns)

		values := make([]interface{}, 0, len(row)+1)
		for _, name := range columns {
			values = append(values, row[name])
		}
		columns = append(columns, seqColumn)
		values = append(values, d.nextSeq())

		ib := sqlbuilder.NewInsertBuilder()
		ib.InsertInto(table).Cols(columns...).Values(values...)

		query, args := ib.BuildWithFlavor(d.flavor)
		if _, err := conn.ExecContext(context.Background(), query, args...); err != nil {
			return fmt.Errorf("insert error, table=%s, err=%v", table, err)
		}
	}
	return nil
}

func (d *sqlDriver) GetOnlineFeatures(table string, entityColumn string, entityValue interface{}) (map[string]interface{}, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("*").From(table)
	sb.Where(sb.Equal(entityColumn, entityValue))
	sb.OrderBy(seqColumn).Desc().Limit(1)

	query, args := sb.BuildWithFlavor(d.flavor)
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("point lookup error, table=%s, err=%v", table, err)
	}
	defer rows.Close()

	result, err := utils.ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("point lookup scan error, table=%s, err=%v", table, err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	features := result[0]
	delete(features, seqColumn)
	return features, nil
}

func (d *sqlDriver) Close() error {
	if d.writeConn != nil {
		err := d.writeConn.Close()
		d.writeConn = nil
		return err
	}
	return nil
}
