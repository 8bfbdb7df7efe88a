package table

import (
	"fmt"
	"sync"
)

// Store holds the table rows and their uploaded source documents in memory.
// State is deliberately non-persistent: a restart or reset starts from an
// empty table. Appends come from the single batch run in flight while list
// and file reads arrive from other request goroutines, hence the lock.
type Store struct {
	mu    sync.RWMutex
	rows  []*Row
	files map[string]storedFile
}

type storedFile struct {
	data        []byte
	contentType string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		files: make(map[string]storedFile),
	}
}

// Append adds a row to the end of the table along with the source document it
// was extracted from, so the original can be re-viewed per row.
func (s *Store) Append(row *Row, source []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	s.files[row.ID] = storedFile{data: source, contentType: contentType}
}

// Rows returns the rows in insertion order.
func (s *Store) Rows() []*Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Len returns the current row count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// SourceFile returns the uploaded document a row was extracted from.
func (s *Store) SourceFile(id string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, "", fmt.Errorf("no source file for row %s", id)
	}
	return f.data, f.contentType, nil
}

// Reset clears the whole table. There is no per-row deletion.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	s.files = make(map[string]storedFile)
}
