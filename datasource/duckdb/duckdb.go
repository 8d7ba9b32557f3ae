package duckdb

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

// DuckDB is an embedded analytical database instance. An empty Path opens an
// in-memory database.
type DuckDB struct {
	Path string
	DB   *sql.DB
	Name string
}

var duckdbInstances sync.Map

func GetDuckDB(name string) (*DuckDB, error) {
	value, ok := duckdbInstances.Load(name)
	if !ok {
		return nil, fmt.Errorf("duckdb not found, name:%s", name)
	}

	duckdbInstance, ok := value.(*DuckDB)
	if !ok {
		return nil, fmt.Errorf("duckdb not found, name:%s", name)
	}

	return duckdbInstance, nil
}

func (m *DuckDB) Init() error {
	db, err := sql.Open("duckdb", m.Path)
	if err != nil {
		return err
	}

	// DuckDB is embedded; a single writer connection is plenty.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	m.DB = db
	return m.DB.Ping()
}

func RegisterDuckDB(name, path string) error {
	if _, ok := duckdbInstances.Load(name); ok {
		return nil
	}
	m := &DuckDB{
		Path: path,
		Name: name,
	}
	if err := m.Init(); err != nil {
		return fmt.Errorf("register duckdb error, name=%s, err=%v", name, err)
	}
	duckdbInstances.Store(name, m)
	return nil
}

func RemoveDuckDB(name string) {
	value, ok := duckdbInstances.Load(name)
	if !ok {
		return
	}
	d, ok := value.(*DuckDB)
	if !ok {
		return
	}

	if d.DB != nil {
		d.DB.Close()
	}

	duckdbInstances.Delete(name)
}
