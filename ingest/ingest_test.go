package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"fortio.org/assert"
	"github.com/parquet-go/parquet-go"
)

type recordingStore struct {
	mu   sync.Mutex
	rows map[string][]map[string]interface{}
	fail bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{rows: make(map[string][]map[string]interface{})}
}

func (s *recordingStore) InsertBatch(table string, rows []map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("injected fault")
	}
	s.rows[table] = append(s.rows[table], rows...)
	return nil
}

func TestRowsWritesBothStores(t *testing.T) {
	offline := newRecordingStore()
	online := newRecordingStore()

	rows := []map[string]interface{}{
		{"customer_id": int64(1), "age": int64(25)},
		{"customer_id": int64(2), "age": int64(40)},
	}
	assert.NoError(t, Rows(offline, online, "customer_features", rows))

	assert.Equal(t, 2, len(offline.rows["customer_features"]))
	assert.Equal(t, 2, len(online.rows["customer_features"]))
}

func TestRowsAttemptsBothStoresOnFailure(t *testing.T) {
	offline := newRecordingStore()
	offline.fail = true
	online := newRecordingStore()

	rows := []map[string]interface{}{{"customer_id": int64(1)}}
	err := Rows(offline, online, "customer_features", rows)
	assert.True(t, err != nil)

	// online still received the batch; the checker will surface the gap
	assert.Equal(t, 1, len(online.rows["customer_features"]))
}

type customerRow struct {
	CustomerID int64   `parquet:"customer_id"`
	Age        int64   `parquet:"age"`
	Loyalty    float64 `parquet:"loyalty_score"`
	Country    string  `parquet:"country"`
}

func writeParquetFixture(t *testing.T, rows []customerRow) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "backfill.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	writer := parquet.NewGenericWriter[customerRow](f)
	if _, err := writer.Write(rows); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParquetFileBackfill(t *testing.T) {
	path := writeParquetFixture(t, []customerRow{
		{CustomerID: 1, Age: 25, Loyalty: 0.5, Country: "DE"},
		{CustomerID: 2, Age: 40, Loyalty: 0.9, Country: "FR"},
		{CustomerID: 3, Age: 35, Loyalty: 0.7, Country: "DE"},
	})

	offline := newRecordingStore()
	online := newRecordingStore()

	n, err := ParquetFile(offline, online, "customer_features", path)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	rows := offline.rows["customer_features"]
	assert.Equal(t, 3, len(rows))
	assert.Equal(t, int64(1), rows[0]["customer_id"])
	assert.Equal(t, 0.5, rows[0]["loyalty_score"])
	assert.Equal(t, "DE", rows[0]["country"])
	assert.Equal(t, rows, online.rows["customer_features"])
}

func TestReadParquetRowsMissingFile(t *testing.T) {
	_, err := ReadParquetRows(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.True(t, err != nil)
}
