package utils

import (
	"database/sql"
	"strconv"
	"strings"
)

// ScanRows reads every row of a generic result set into column→value maps.
// Byte slices are decoded according to the declared column type so numeric
// columns come back as numbers regardless of the driver's wire format.
func ScanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	var result []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, name := range columns {
			row[name] = NormalizeValue(values[i], columnTypes[i].DatabaseTypeName())
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// NormalizeValue converts driver-specific scan results into plain Go scalars.
func NormalizeValue(value interface{}, dbTypeName string) interface{} {
	raw, ok := value.([]byte)
	if !ok {
		return value
	}

	s := string(raw)
	typeName := strings.ToUpper(dbTypeName)
	switch {
	case strings.Contains(typeName, "INT"):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case strings.Contains(typeName, "FLOAT"),
		strings.Contains(typeName, "DOUBLE"),
		strings.Contains(typeName, "REAL"),
		strings.Contains(typeName, "DECIMAL"),
		strings.Contains(typeName, "NUMERIC"):
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case strings.Contains(typeName, "BOOL"):
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}
