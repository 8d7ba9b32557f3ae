// Package ingest loads row batches into both stores: the offline store as
// the system of record, the online store as the latest-value cache. The two
// writes are independent; partial failure is detectable drift, not a
// transaction to roll back.
package ingest

import (
	"fmt"
)

// StoreWriter is the batch write surface shared by both stores.
type StoreWriter interface {
	InsertBatch(table string, rows []map[string]interface{}) error
}

// Rows writes one batch to the offline store and then to the online store.
// Both writes are attempted even if the first fails.
func Rows(offline, online StoreWriter, table string, rows []map[string]interface{}) error {
	offlineErr := offline.InsertBatch(table, rows)
	onlineErr := online.InsertBatch(table, rows)

	if offlineErr != nil {
		return fmt.Errorf("offline ingest error, table=%s, err=%v", table, offlineErr)
	}
	if onlineErr != nil {
		return fmt.Errorf("online ingest error, table=%s, err=%v", table, onlineErr)
	}
	return nil
}
