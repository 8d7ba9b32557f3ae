package mysql

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

type Mysql struct {
	DSN  string
	DB   *sql.DB
	Name string
}

var mysqlInstances sync.Map

func GetMysql(name string) (*Mysql, error) {
	value, ok := mysqlInstances.Load(name)
	if !ok {
		return nil, fmt.Errorf("mysql not found, name:%s", name)
	}

	mysqlInstance, ok := value.(*Mysql)
	if !ok {
		return nil, fmt.Errorf("mysql not found, name:%s", name)
	}

	return mysqlInstance, nil
}

func (m *Mysql) Init() error {
	db, err := sql.Open("mysql", m.DSN)
	if err != nil {
		return err
	}

	db.SetConnMaxLifetime(60 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(50)

	m.DB = db
	return m.DB.Ping()
}

func RegisterMysql(name, dsn string) error {
	if _, ok := mysqlInstances.Load(name); ok {
		return nil
	}
	m := &Mysql{
		DSN:  dsn,
		Name: name,
	}
	if err := m.Init(); err != nil {
		return fmt.Errorf("register mysql error, name=%s, err=%v", name, err)
	}
	mysqlInstances.Store(name, m)
	return nil
}

func RemoveMysql(name string) {
	value, ok := mysqlInstances.Load(name)
	if !ok {
		return
	}
	m, ok := value.(*Mysql)
	if !ok {
		return
	}

	if m.DB != nil {
		m.DB.Close()
	}

	mysqlInstances.Delete(name)
}
