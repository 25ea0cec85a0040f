package document

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/user"
)

var (
	// errors
	ErrNotFound   = errors.WithMessage(record.ErrNotFound, "document")
	ErrNotAllowed = errors.New("not allowed to change this document")
)

type (
	Repository interface {
		CreateDocument(ctx context.Context, doc Document) (Document, error)
		GetDocument(ctx context.Context, id string) (Document, error)
		// QueryDocuments returns every document, or only those uploaded by userID when it is not empty.
		QueryDocuments(ctx context.Context, userID string) ([]Document, error)
		IncrementDownloads(ctx context.Context, id string) error
		DeleteDocument(ctx context.Context, id string) error
	}

	// Upload is the file part of a document upload.
	Upload struct {
		FileName    string
		ContentType string
		Content     io.Reader
	}

	Service interface {
		Upload(ctx context.Context, owner user.User, nd NewDocument, file Upload) (Document, error)
		Fetch(ctx context.Context, filter Filter, orderings ...core.DBOrdering) ([]Document, error)
		Get(ctx context.Context, id string) (Document, error)
		// Download counts a download and returns the file URL.
		Download(ctx context.Context, id string) (string, error)
		Delete(ctx context.Context, id string, actor user.User) error
	}

	service struct {
		repo  Repository
		blobs core.BlobStore
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, blobs core.BlobStore) Service {
	return &service{repo: repo, blobs: blobs}
}

func (nd *NewDocument) Validate(validate *validator.Validate) error {
	nd.Clean()
	return validate.Struct(nd)
}

// ObjectPath returns where an uploaded file is stored in the blob store.
func ObjectPath(userID, fileName string) string {
	return path.Join("documents", userID, fileName)
}

func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func (svc *service) Upload(ctx context.Context, owner user.User, nd NewDocument, file Upload) (Document, error) {
	nd.Clean()
	fileName := cleanFileName(file.FileName)
	if fileName == "" || file.Content == nil {
		return Document{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}

	url, err := svc.blobs.Upload(ctx, ObjectPath(owner.ID, fileName), file.Content, file.ContentType)
	if err != nil {
		return Document{}, errors.Wrap(err, "uploading file")
	}

	var price float64
	if nd.Price != nil {
		price = core.RoundCents(*nd.Price)
	}
	doc := Document{
		UserID:      owner.ID,
		Title:       nd.Title,
		Description: nd.Description,
		FileURL:     url,
		Price:       price,
		Downloads:   0,
		Category:    nd.Category,
		Tags:        SplitTags(nd.Tags),
	}
	doc, err = svc.repo.CreateDocument(ctx, doc)
	if err != nil {
		// do not leave orphan files behind
		_ = svc.releaseFile(ctx, owner.ID, url)
		return Document{}, errors.Wrap(err, "creating document")
	}
	return doc, nil
}

// Fetch loads the documents (all of them, or one user's) and narrows them down with the search
// term and category of the filter. All filters are AND-combined.
func (svc *service) Fetch(ctx context.Context, filter Filter, orderings ...core.DBOrdering) ([]Document, error) {
	filter.Clean()
	docs, err := svc.repo.QueryDocuments(ctx, filter.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "querying documents")
	}

	matches := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if filter.Match(doc) {
			matches = append(matches, doc)
		}
	}
	if len(orderings) > 0 {
		Sort(matches, orderings)
	}
	return matches, nil
}

func (svc *service) Get(ctx context.Context, id string) (Document, error) {
	return svc.repo.GetDocument(ctx, id)
}

func (svc *service) Download(ctx context.Context, id string) (string, error) {
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	if err = svc.repo.IncrementDownloads(ctx, id); err != nil {
		return "", errors.Wrap(err, "counting download")
	}
	return doc.FileURL, nil
}

func (svc *service) Delete(ctx context.Context, id string, actor user.User) error {
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.UserID != actor.ID && !actor.IsAdmin() {
		return ErrNotAllowed
	}
	if err = svc.repo.DeleteDocument(ctx, id); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if err = svc.releaseFile(ctx, doc.UserID, doc.FileURL); err != nil {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}

// releaseFile deletes the blob at url unless a document of owner still points to it.
// Files are stored per owner and file name, so re-uploads of a name share one blob.
func (svc *service) releaseFile(ctx context.Context, ownerID, url string) error {
	docs, err := svc.repo.QueryDocuments(ctx, ownerID)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	for _, doc := range docs {
		if doc.FileURL == url {
			return nil
		}
	}
	return svc.blobs.Delete(ctx, url)
}
