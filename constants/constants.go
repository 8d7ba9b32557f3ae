package constants

type FSType int

const (
	FS_INT32 FSType = iota + 1 // int32
	FS_INT64                   // int64
	FS_FLOAT
	FS_DOUBLE
	FS_STRING
	FS_BOOLEAN
	FS_TIMESTAMP
)

var fsTypeNames = map[string]FSType{
	"int32":     FS_INT32,
	"int64":     FS_INT64,
	"float":     FS_FLOAT,
	"double":    FS_DOUBLE,
	"string":    FS_STRING,
	"boolean":   FS_BOOLEAN,
	"timestamp": FS_TIMESTAMP,
}

// FSTypeFromName resolves a type name used in config files and APIs.
func FSTypeFromName(name string) (FSType, bool) {
	t, ok := fsTypeNames[name]
	return t, ok
}

const (
	Datasource_Type_MySQL    = "mysql"
	Datasource_Type_Postgres = "postgres"
	Datasource_Type_DuckDB   = "duckdb"
	Datasource_Type_Redis    = "redis"
	Datasource_Type_Memory   = "memory"
)
