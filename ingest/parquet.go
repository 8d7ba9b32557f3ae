package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// ParquetFile backfills both stores from a flat Parquet file whose column
// names match the target table. Returns the number of rows ingested.
func ParquetFile(offline, online StoreWriter, table string, path string) (int, error) {
	rows, err := ReadParquetRows(path)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := Rows(offline, online, table, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ReadParquetRows reads every row of a flat Parquet file into column→value
// maps.
func ReadParquetRows(path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file error, err=%v", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet file error, err=%v", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet file error, path=%s, err=%v", path, err)
	}

	columns := pf.Schema().Columns()
	names := make([]string, len(columns))
	for i, path := range columns {
		if len(path) != 1 {
			return nil, fmt.Errorf("nested parquet schemas are not supported, column=%v", path)
		}
		names[i] = path[0]
	}

	var result []map[string]interface{}
	for _, rowGroup := range pf.RowGroups() {
		rows := rowGroup.Rows()

		buf := make([]parquet.Row, 256)
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				record := make(map[string]interface{}, len(names))
				for _, value := range row {
					record[names[value.Column()]] = parquetValue(value)
				}
				result = append(result, record)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read parquet rows error, err=%v", err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close parquet rows error, err=%v", err)
		}
	}

	return result, nil
}

func parquetValue(v parquet.Value) interface{} {
	if v.IsNull() {
		return nil
	}

	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return v.String()
}
