package records

import (
	"context"

	"github.com/trezcool/tutorly/core/document"
	"github.com/trezcool/tutorly/core/record"
)

func (repo *Repository) CreateDocument(ctx context.Context, doc document.Document) (document.Document, error) {
	var created document.Document
	if err := repo.create(ctx, Documents, doc, &created); err != nil {
		return document.Document{}, err
	}
	return created, nil
}

func (repo *Repository) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var doc document.Document
	if err := repo.get(ctx, Documents, id, &doc, document.ErrNotFound); err != nil {
		return document.Document{}, err
	}
	return doc, nil
}

func (repo *Repository) QueryDocuments(ctx context.Context, userID string) ([]document.Document, error) {
	var filters []record.Filter
	if userID != "" {
		filters = append(filters, record.Eq("userId", userID))
	}
	var docs []*document.Document
	err := repo.query(ctx, Documents, func() interface{} {
		docs = append(docs, new(document.Document))
		return docs[len(docs)-1]
	}, filters...)
	if err != nil {
		return nil, err
	}
	res := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		res = append(res, *doc)
	}
	return res, nil
}

func (repo *Repository) IncrementDownloads(ctx context.Context, id string) error {
	return trapNotFound(repo.store.Increment(ctx, Documents, id, "downloads", 1), document.ErrNotFound)
}

func (repo *Repository) DeleteDocument(ctx context.Context, id string) error {
	return repo.store.Delete(ctx, Documents, id)
}
