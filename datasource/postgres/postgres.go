package postgres

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
)

func init() {
	sql.Register("featurestore-postgres", &PostgresDriver{})
}

// PostgresDriver wraps lib/pq to cap statement runtime on every connection,
// keeping point lookups from piling up behind a slow analytical query.
type PostgresDriver struct {
	driver pq.Driver
}

func (d PostgresDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.driver.Open(name)
	if err != nil {
		return nil, err
	}

	if stmt, err := conn.Prepare("set statement_timeout = 500"); err == nil {
		stmt.Exec(nil)
		stmt.Close()
	}
	return conn, err
}

type Postgres struct {
	DSN  string
	DB   *sql.DB
	Name string
}

var postgresInstances sync.Map

func GetPostgres(name string) (*Postgres, error) {
	value, ok := postgresInstances.Load(name)
	if !ok {
		return nil, fmt.Errorf("postgres not found, name:%s", name)
	}

	postgresInstance, ok := value.(*Postgres)
	if !ok {
		return nil, fmt.Errorf("postgres not found, name:%s", name)
	}

	return postgresInstance, nil
}

func (m *Postgres) Init() error {
	db, err := sql.Open("featurestore-postgres", m.DSN)
	if err != nil {
		return err
	}

	db.SetConnMaxLifetime(60 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(50)

	m.DB = db
	return m.DB.Ping()
}

func RegisterPostgres(name, dsn string) error {
	if _, ok := postgresInstances.Load(name); ok {
		return nil
	}
	m := &Postgres{
		DSN:  dsn,
		Name: name,
	}
	if err := m.Init(); err != nil {
		return fmt.Errorf("register postgres error, name=%s, err=%v", name, err)
	}
	postgresInstances.Store(name, m)
	return nil
}

func RemovePostgres(name string) {
	value, ok := postgresInstances.Load(name)
	if !ok {
		return
	}
	p, ok := value.(*Postgres)
	if !ok {
		return
	}

	if p.DB != nil {
		p.DB.Close()
	}

	postgresInstances.Delete(name)
}
