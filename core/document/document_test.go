package document_test

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/document"
	"github.com/trezcool/tutorly/core/user"
	inmemdb "github.com/trezcool/tutorly/storage/database/inmem"
	"github.com/trezcool/tutorly/storage/database/records"
)

type memBlobs struct {
	mu      sync.Mutex
	objects map[string]string
	failing bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string]string)}
}

func (b *memBlobs) Upload(_ context.Context, objectPath string, r io.Reader, _ string) (string, error) {
	if b.failing {
		return "", errors.New("storage is down")
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	url := "https://blobs.test/" + objectPath
	b.objects[url] = string(data)
	return url, nil
}

func (b *memBlobs) Delete(_ context.Context, fileURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, fileURL)
	return nil
}

func price(p float64) *float64 { return &p }

func TestSplitTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: " , ,", want: []string{}},
		{in: "math", want: []string{"math"}},
		{in: " math , algebra,math,, Algebra ", want: []string{"math", "algebra", "Algebra"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, document.SplitTags(tt.in))
		})
	}
}

func TestFilter_Match(t *testing.T) {
	doc := document.Document{
		Title:       "Intro to Algebra",
		Description: "Linear equations",
		Category:    "Mathematics",
		Tags:        []string{"Equations", "grade-9"},
	}

	tests := []struct {
		name   string
		filter document.Filter
		want   bool
	}{
		{name: "empty", want: true},
		{name: "title", filter: document.Filter{SearchTerm: "ALGEBRA"}, want: true},
		{name: "description", filter: document.Filter{SearchTerm: "linear"}, want: true},
		{name: "tag", filter: document.Filter{SearchTerm: "grade"}, want: true},
		{name: "no match", filter: document.Filter{SearchTerm: "physics"}},
		{name: "category is not searched", filter: document.Filter{SearchTerm: "mathematics"}},
		{name: "category", filter: document.Filter{Category: "mathematics"}, want: true},
		{name: "partial category", filter: document.Filter{Category: "math"}},
		{name: "combined", filter: document.Filter{Category: "mathematics", SearchTerm: "equations"}, want: true},
		{name: "combined (no match)", filter: document.Filter{Category: "history", SearchTerm: "equations"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filter
			f.Clean()
			assert.Equal(t, tt.want, f.Match(doc))
		})
	}
}

func TestSort(t *testing.T) {
	now := time.Now()
	docs := []document.Document{
		{ID: "a", Title: "b", Price: 5, CreatedAt: now},
		{ID: "b", Title: "A", Price: 1, CreatedAt: now.Add(time.Hour)},
		{ID: "c", Title: "c", Price: 5, CreatedAt: now.Add(-time.Hour)},
	}
	ids := func(docs []document.Document) []string {
		res := make([]string, 0, len(docs))
		for _, d := range docs {
			res = append(res, d.ID)
		}
		return res
	}

	tests := []struct {
		name      string
		orderings []core.DBOrdering
		want      []string
	}{
		{name: "price desc, stable", orderings: []core.DBOrdering{{Field: "price"}}, want: []string{"a", "c", "b"}},
		{name: "price then title", orderings: []core.DBOrdering{{Field: "price"}, {Field: "title", Ascending: true}}, want: []string{"a", "c", "b"}},
		{name: "title (case insensitive)", orderings: []core.DBOrdering{{Field: "title", Ascending: true}}, want: []string{"b", "a", "c"}},
		{name: "newest first", orderings: []core.DBOrdering{{Field: "createdAt"}}, want: []string{"b", "a", "c"}},
		{name: "unknown field", orderings: []core.DBOrdering{{Field: "lol"}}, want: []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sorted := append([]document.Document(nil), docs...)
			document.Sort(sorted, tt.orderings)
			assert.Equal(t, tt.want, ids(sorted))
		})
	}
}

func TestNewDocument_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	document.InitValidators(validate, translator)

	valid := document.NewDocument{Title: "Algebra", Description: "Notes", Price: price(0), Category: "Math", Tags: "math"}
	nd := valid
	assert.NoError(t, nd.Validate(validate))

	tests := []struct {
		name   string
		modify func(nd *document.NewDocument)
		field  string
	}{
		{name: "blank title", modify: func(nd *document.NewDocument) { nd.Title = "  " }, field: "title"},
		{name: "no price", modify: func(nd *document.NewDocument) { nd.Price = nil }, field: "price"},
		{name: "negative price", modify: func(nd *document.NewDocument) { nd.Price = price(-1) }, field: "price"},
		{name: "blank tags", modify: func(nd *document.NewDocument) { nd.Tags = " , " }, field: "tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nd := valid
			tt.modify(&nd)
			err := nd.Validate(validate)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "Validate() error = %v", err)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

type fixture struct {
	svc   document.Service
	repo  *records.Repository
	blobs *memBlobs
	owner user.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	repo := records.NewRepository(inmemdb.NewStore())
	blobs := newMemBlobs()
	owner, err := repo.CreateUser(context.Background(), user.User{Name: "Tutor", Email: "tutor@test.cd", Roles: []string{user.RoleTutor}, IsActive: true})
	require.NoError(t, err)
	return fixture{svc: document.NewService(repo, blobs), repo: repo, blobs: blobs, owner: owner}
}

func (f fixture) upload(t *testing.T, title, description, category, tags string) document.Document {
	t.Helper()
	doc, err := f.svc.Upload(context.Background(), f.owner, document.NewDocument{
		Title: title, Description: description, Price: price(2.499), Category: category, Tags: tags,
	}, document.Upload{FileName: title + ".pdf", ContentType: "application/pdf", Content: strings.NewReader(title)})
	require.NoError(t, err)
	return doc
}

func TestService_Fetch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	algebra := f.upload(t, "Algebra", "Linear MATH", "Mathematics", "equations")
	calculus := f.upload(t, "Calculus", "Limits", "Mathematics", "mathematics,derivatives")
	rome := f.upload(t, "Rome", "Empire", "History", "antiquity")

	tests := []struct {
		name   string
		filter document.Filter
		want   []document.Document
	}{
		{name: "all", want: []document.Document{algebra, calculus, rome}},
		{name: "search", filter: document.Filter{SearchTerm: "math"}, want: []document.Document{algebra, calculus}},
		{name: "category", filter: document.Filter{Category: " HISTORY "}, want: []document.Document{rome}},
		{name: "owner", filter: document.Filter{UserID: f.owner.ID, SearchTerm: "empire"}, want: []document.Document{rome}},
		{name: "other owner", filter: document.Filter{UserID: "someone"}, want: []document.Document{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Fetch(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Upload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc := f.upload(t, "Algebra", "Notes", " Math ", "x, y ,x")
	assert.Equal(t, f.owner.ID, doc.UserID)
	assert.Equal(t, "Math", doc.Category)
	assert.Equal(t, []string{"x", "y"}, doc.Tags)
	assert.Equal(t, 2.5, doc.Price)
	assert.Equal(t, "https://blobs.test/documents/"+f.owner.ID+"/Algebra.pdf", doc.FileURL)
	assert.Equal(t, "Algebra", f.blobs.objects[doc.FileURL])

	t.Run("no file", func(t *testing.T) {
		_, err := f.svc.Upload(ctx, f.owner, document.NewDocument{Title: "A", Tags: "x"}, document.Upload{FileName: ".."})
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("storage failure", func(t *testing.T) {
		f.blobs.failing = true
		defer func() { f.blobs.failing = false }()
		_, err := f.svc.Upload(ctx, f.owner, document.NewDocument{Title: "A", Tags: "x"}, document.Upload{FileName: "a.pdf", Content: strings.NewReader("a")})
		assert.Error(t, err)
		docs, err := f.repo.QueryDocuments(ctx, "")
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})
}

func TestService_DownloadAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	doc := f.upload(t, "Algebra", "Notes", "Math", "x")

	for i := 0; i < 2; i++ {
		url, err := f.svc.Download(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.FileURL, url)
	}
	stored, err := f.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Downloads)

	_, err = f.svc.Download(ctx, "unknown")
	assert.True(t, errors.Is(err, document.ErrNotFound))

	stranger := user.User{ID: "stranger", Roles: []string{user.RoleStudent}}
	assert.Equal(t, document.ErrNotAllowed, f.svc.Delete(ctx, doc.ID, stranger))

	admin := user.User{ID: "admin", Roles: []string{user.RoleAdmin}}
	require.NoError(t, f.svc.Delete(ctx, doc.ID, admin))
	_, err = f.svc.Get(ctx, doc.ID)
	assert.True(t, errors.Is(err, document.ErrNotFound))
	assert.Empty(t, f.blobs.objects)
}

func TestService_DeleteSharedFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.upload(t, "notes", "First", "Math", "x")
	second := f.upload(t, "notes", "Second", "Math", "x")
	require.Equal(t, first.FileURL, second.FileURL)

	require.NoError(t, f.svc.Delete(ctx, first.ID, f.owner))
	assert.Contains(t, f.blobs.objects, second.FileURL, "file still referenced by another document")

	require.NoError(t, f.svc.Delete(ctx, second.ID, f.owner))
	assert.NotContains(t, f.blobs.objects, second.FileURL)
}
