package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/record"
)

type (
	// Store is a record.Store kept in memory; records of a collection are kept in insertion order.
	Store struct {
		mutex  sync.RWMutex
		tables map[string]*table
	}

	table struct {
		order []string
		rows  map[string]record.Doc
	}
)

var _ record.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) table(collection string) *table {
	tbl, ok := s.tables[collection]
	if !ok {
		tbl = &table{rows: make(map[string]record.Doc)}
		s.tables[collection] = tbl
	}
	return tbl
}

func (s *Store) Create(_ context.Context, collection string, data record.Doc) (string, error) {
	doc := record.Clone(data)
	id := uuid.New().String()
	doc[record.FieldID] = id
	doc[record.FieldCreatedAt] = record.Timestamp(record.Now())

	s.mutex.Lock()
	defer s.mutex.Unlock()

	tbl := s.table(collection)
	tbl.rows[id] = doc
	tbl.order = append(tbl.order, id)
	return id, nil
}

func (s *Store) update(collection, id string, patch record.Doc) error {
	tbl := s.table(collection)
	doc, ok := tbl.rows[id]
	if !ok {
		return core.NewWriteError("update", collection, record.ErrNotFound)
	}
	for k, v := range record.Clone(patch) {
		if k == record.FieldID {
			continue
		}
		doc[k] = v
	}
	doc[record.FieldUpdatedAt] = record.Timestamp(record.Now())
	return nil
}

func (s *Store) Update(_ context.Context, collection, id string, patch record.Doc) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.update(collection, id, patch)
}

func (s *Store) UpdateIf(_ context.Context, collection, id string, expect record.Filter, patch record.Doc) (bool, error) {
	if err := expect.Validate(); err != nil {
		return false, core.NewWriteError("update", collection, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, ok := s.table(collection).rows[id]
	if !ok {
		return false, core.NewWriteError("update", collection, record.ErrNotFound)
	}
	if !expect.Match(doc) {
		return false, nil
	}
	return true, s.update(collection, id, patch)
}

func (s *Store) Increment(_ context.Context, collection, id, field string, delta float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, ok := s.table(collection).rows[id]
	if !ok {
		return core.NewWriteError("increment", collection, record.ErrNotFound)
	}
	curr, _ := doc[field].(float64)
	doc[field] = curr + delta
	doc[record.FieldUpdatedAt] = record.Timestamp(record.Now())
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tbl := s.table(collection)
	if _, ok := tbl.rows[id]; !ok {
		return nil
	}
	delete(tbl.rows, id)
	for i, oid := range tbl.order {
		if oid == id {
			tbl.order = append(tbl.order[:i], tbl.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Get(_ context.Context, collection, id string) (record.Doc, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tbl, ok := s.tables[collection]
	if !ok {
		return nil, core.NewReadError("get", collection, record.ErrNotFound)
	}
	doc, ok := tbl.rows[id]
	if !ok {
		return nil, core.NewReadError("get", collection, record.ErrNotFound)
	}
	return record.Clone(doc), nil
}

func (s *Store) Query(_ context.Context, collection string, filters ...record.Filter) ([]record.Doc, error) {
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, core.NewReadError("query", collection, err)
		}
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tbl, ok := s.tables[collection]
	if !ok {
		return []record.Doc{}, nil
	}
	docs := make([]record.Doc, 0, len(tbl.order))
	for _, id := range tbl.order {
		doc := tbl.rows[id]
		if matchAll(doc, filters) {
			docs = append(docs, record.Clone(doc))
		}
	}
	return docs, nil
}

// Reset drops every record.
func (s *Store) Reset() {
	s.mutex.Lock()
	s.tables = make(map[string]*table)
	s.mutex.Unlock()
}

func (s *Store) Close() error { return nil }

func matchAll(doc record.Doc, filters []record.Filter) bool {
	for _, f := range filters {
		if !f.Match(doc) {
			return false
		}
	}
	return true
}
