// Package records implements the domain repositories on top of a record.Store.
package records

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core/document"
	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/review"
	"github.com/trezcool/tutorly/core/session"
	"github.com/trezcool/tutorly/core/user"
)

// Collections
const (
	Users     = "users"
	Sessions  = "sessions"
	Documents = "documents"
	Reviews   = "reviews"
)

// Repository serves every domain repository from a single record.Store.
type Repository struct {
	store record.Store
}

var (
	_ user.Repository     = (*Repository)(nil)
	_ session.Repository  = (*Repository)(nil)
	_ document.Repository = (*Repository)(nil)
	_ review.Repository   = (*Repository)(nil)
)

func NewRepository(store record.Store) *Repository {
	return &Repository{store: store}
}

// create writes src and loads the stored record back into dst.
func (repo *Repository) create(ctx context.Context, collection string, src, dst interface{}) error {
	doc, err := record.Encode(src)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}
	delete(doc, record.FieldID)
	delete(doc, record.FieldUpdatedAt)

	id, err := repo.store.Create(ctx, collection, doc)
	if err != nil {
		return err
	}
	return repo.get(ctx, collection, id, dst, nil)
}

// update writes src over the record id and loads the result back into dst.
func (repo *Repository) update(ctx context.Context, collection, id string, src, dst interface{}, notFound error) error {
	doc, err := record.Encode(src)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}
	delete(doc, record.FieldID)
	delete(doc, record.FieldCreatedAt)
	delete(doc, record.FieldUpdatedAt)

	if err = repo.store.Update(ctx, collection, id, doc); err != nil {
		return trapNotFound(err, notFound)
	}
	return repo.get(ctx, collection, id, dst, notFound)
}

func (repo *Repository) get(ctx context.Context, collection, id string, dst interface{}, notFound error) error {
	doc, err := repo.store.Get(ctx, collection, id)
	if err != nil {
		return trapNotFound(err, notFound)
	}
	return errors.Wrap(record.Decode(doc, dst), "decoding record")
}

// query decodes every matching record with newDst, which returns the pointer to decode into.
func (repo *Repository) query(ctx context.Context, collection string, newDst func() interface{}, filters ...record.Filter) error {
	docs, err := repo.store.Query(ctx, collection, filters...)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err = record.Decode(doc, newDst()); err != nil {
			return errors.Wrap(err, "decoding record")
		}
	}
	return nil
}

func (repo *Repository) updateIf(ctx context.Context, collection, id string, expect record.Filter, patch record.Doc, notFound error) (bool, error) {
	ok, err := repo.store.UpdateIf(ctx, collection, id, expect, patch)
	if err != nil {
		return false, trapNotFound(err, notFound)
	}
	return ok, nil
}

// trapNotFound replaces a not-found store error with the domain's own error.
func trapNotFound(err, notFound error) error {
	if notFound != nil && errors.Is(err, record.ErrNotFound) {
		return notFound
	}
	return err
}
