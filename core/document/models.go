package document

import (
	"sort"
	"strings"
	"time"

	"github.com/trezcool/tutorly/core"
)

type Document struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileURL     string    `json:"fileUrl"`
	Price       float64   `json:"price"`
	Downloads   int       `json:"downloads"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewDocument contains the form fields of an upload. Tags is a comma separated list.
type NewDocument struct {
	Title       string   `json:"title" form:"title" validate:"required,notblank,max=200"`
	Description string   `json:"description" form:"description" validate:"required,notblank,max=5000"`
	Price       *float64 `json:"price" form:"price" validate:"required,min=0"`
	Category    string   `json:"category" form:"category" validate:"required,notblank,max=100"`
	Tags        string   `json:"tags" form:"tags" validate:"required,tags"`
}

func (nd *NewDocument) Clean() {
	nd.Title = core.CleanString(nd.Title)
	nd.Description = core.CleanString(nd.Description)
	nd.Category = core.CleanString(nd.Category)
	nd.Tags = strings.Join(SplitTags(nd.Tags), ",")
}

// SplitTags splits a comma separated list into trimmed, non-empty, unique tags.
func SplitTags(s string) []string {
	seen := make(map[string]bool)
	tags := make([]string, 0)
	for _, tag := range strings.Split(s, ",") {
		tag = core.CleanString(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// Filter narrows down Fetch results. Empty fields are ignored.
type Filter struct {
	UserID     string `query:"userId"`
	Category   string `query:"category"`
	SearchTerm string `query:"search"`
}

func (f *Filter) Clean() {
	f.UserID = core.CleanString(f.UserID)
	f.Category = core.CleanString(f.Category, true /* lower */)
	f.SearchTerm = core.CleanString(f.SearchTerm, true /* lower */)
}

// Match applies the search term and category filters.
// The search term is matched case-insensitively as a substring of the title, description or any tag;
// the category case-insensitively as a whole.
func (f Filter) Match(doc Document) bool {
	if f.Category != "" && strings.ToLower(doc.Category) != f.Category {
		return false
	}
	if f.SearchTerm == "" {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Title), f.SearchTerm) ||
		strings.Contains(strings.ToLower(doc.Description), f.SearchTerm) {
		return true
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), f.SearchTerm) {
			return true
		}
	}
	return false
}

// Sort orders documents in place. Unknown fields are ignored.
func Sort(docs []Document, orderings []core.DBOrdering) {
	less := func(a, b Document, field string) (bool, bool) {
		switch field {
		case "createdAt":
			return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		case "price":
			return a.Price < b.Price, a.Price == b.Price
		case "downloads":
			return a.Downloads < b.Downloads, a.Downloads == b.Downloads
		case "title":
			ta, tb := strings.ToLower(a.Title), strings.ToLower(b.Title)
			return ta < tb, ta == tb
		}
		return false, true
	}

	sort.SliceStable(docs, func(i, j int) bool {
		for _, ord := range orderings {
			lt, eq := less(docs[i], docs[j], ord.Field)
			if eq {
				continue
			}
			if ord.Ascending {
				return lt
			}
			return !lt
		}
		return false
	})
}
