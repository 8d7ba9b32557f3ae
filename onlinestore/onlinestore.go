// Package onlinestore implements the low-latency latest-value store. All
// mutations are serialized through one background worker that owns the write
// handle; reads bypass the queue and run immediately on their own
// connections. A reader may therefore observe state older than the most
// recently submitted write until the queue drains.
package onlinestore

import (
	"sync"

	"github.com/featuremesh/featurestore-go/constants"
	"github.com/featuremesh/featurestore-go/domain"
)

type StoreOption func(s *Store)

func WithLogger(l domain.Logger) StoreOption {
	return func(s *Store) {
		s.Logger = l
	}
}

func WithErrorLogger(l domain.Logger) StoreOption {
	return func(s *Store) {
		s.ErrorLogger = l
	}
}

type command struct {
	op  string
	run func(Driver) error
}

// Store serializes createTable/insert commands through an unbounded FIFO
// drained by a single worker goroutine. Enqueueing never blocks; Close blocks
// until the worker has drained everything already submitted.
type Store struct {
	driver Driver

	// Logger reports internal progress, ErrorLogger failed queue commands.
	Logger      domain.Logger
	ErrorLogger domain.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []command
	closed bool
	done   chan struct{}
}

func NewStore(driver Driver, opts ...StoreOption) *Store {
	s := &Store{
		driver: driver,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	for _, opt := range opts {
		opt(s)
	}

	go s.processQueue()

	return s
}

// processQueue is the single write worker. A failing command is logged and
// skipped; the worker never stops on one bad write.
func (s *Store) processQueue() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		cmd := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := cmd.run(s.driver); err != nil {
			s.logError("error processing queue item, op=%s, err=%v", cmd.op, err)
		}
	}
}

func (s *Store) enqueue(cmd command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &domain.ValidationError{Op: cmd.op, Reason: "store is closed"}
	}
	s.queue = append(s.queue, cmd)
	s.cond.Signal()
	return nil
}

// CreateTable enqueues a create-if-absent table creation. It returns once the
// command is queued, not once the table exists.
func (s *Store) CreateTable(table string, schema map[string]constants.FSType) error {
	if table == "" {
		return &domain.ValidationError{Op: "create_table", Reason: "empty table name"}
	}
	if len(schema) == 0 {
		return &domain.ValidationError{Op: "create_table", Reason: "empty schema"}
	}

	return s.enqueue(command{
		op: "create_table",
		run: func(d Driver) error {
			return d.CreateTable(table, schema)
		},
	})
}

// InsertData enqueues a single-row append. Duplicate entity keys accumulate
// rows; GetOnlineFeatures resolves to the freshest one.
func (s *Store) InsertData(table string, record map[string]interface{}) error {
	if len(record) == 0 {
		return &domain.ValidationError{Op: "insert", Reason: "record must be a non-empty map"}
	}
	return s.insert(table, []map[string]interface{}{record})
}

// InsertBatch enqueues a multi-row append as one command.
func (s *Store) InsertBatch(table string, rows []map[string]interface{}) error {
	if len(rows) == 0 {
		return &domain.ValidationError{Op: "insert", Reason: "row batch must be non-empty"}
	}
	for _, row := range rows {
		if len(row) == 0 {
			return &domain.ValidationError{Op: "insert", Reason: "row batch contains an empty row"}
		}
	}
	return s.insert(table, rows)
}

func (s *Store) insert(table string, rows []map[string]interface{}) error {
	if table == "" {
		return &domain.ValidationError{Op: "insert", Reason: "empty table name"}
	}

	return s.enqueue(command{
		op: "insert",
		run: func(d Driver) error {
			return d.Insert(table, rows)
		},
	})
}

// GetOnlineFeatures does a point lookup by exact equality on entityColumn and
// returns the freshest matching row, nil when no row matches (absence, not an
// error). It runs immediately, concurrently with queued writes, so it may
// legitimately miss a write that is still in the queue.
func (s *Store) GetOnlineFeatures(table string, entityColumn string, entityValue interface{}) (map[string]interface{}, error) {
	features, err := s.driver.GetOnlineFeatures(table, entityColumn, entityValue)
	if err != nil {
		return nil, &domain.StoreUnavailableError{Store: "online", Op: "get_online_features", Err: err}
	}
	return features, nil
}

// QueueDepth reports the number of commands waiting for the worker.
func (s *Store) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops accepting commands, blocks until the worker has drained the
// queue, and releases the write handle. Reads remain answerable only insofar
// as the underlying datasource stays open.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()

	<-s.done
	return s.driver.Close()
}

func (s *Store) logError(format string, v ...interface{}) {
	if s.ErrorLogger != nil {
		s.ErrorLogger.Printf(format, v...)
		return
	}

	if s.Logger != nil {
		s.Logger.Printf(format, v...)
	}
}
