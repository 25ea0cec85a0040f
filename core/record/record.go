// Package record defines the collection-oriented record store the domain repositories are built on.
package record

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/pkg/errors"
)

// Well known record fields.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Filter operators.
const (
	OpEqual         = "=="
	OpArrayContains = "array-contains"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrInvalidOp = errors.New("unsupported filter operator")
)

type (
	// Doc is a single record: a JSON object keyed by field name.
	Doc map[string]interface{}

	// Filter is a single `field <op> value` condition.
	Filter struct {
		Field string
		Op    string
		Value interface{}
	}

	Store interface {
		// Create stamps `createdAt`, assigns a new id and writes the record.
		Create(ctx context.Context, collection string, data Doc) (string, error)
		// Update stamps `updatedAt` and shallow-merges patch into an existing record.
		Update(ctx context.Context, collection, id string, patch Doc) error
		// UpdateIf is Update applied only when the stored record matches expect.
		UpdateIf(ctx context.Context, collection, id string, expect Filter, patch Doc) (bool, error)
		// Increment atomically adds delta to a numeric field.
		Increment(ctx context.Context, collection, id, field string, delta float64) error
		// Delete removes a record; deleting a missing record is not an error.
		Delete(ctx context.Context, collection, id string) error
		Get(ctx context.Context, collection, id string) (Doc, error)
		// Query returns the records matching all filters, in insertion order.
		Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error)
		Close() error
	}
)

func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func ArrayContains(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

func (f Filter) Validate() error {
	if f.Field == "" {
		return errors.New("filter field is required")
	}
	switch f.Op {
	case OpEqual, OpArrayContains:
		return nil
	}
	return errors.Wrapf(ErrInvalidOp, "%q", f.Op)
}

// Match reports whether doc satisfies the filter.
// Values are compared after a JSON round trip so that e.g. int and float64 compare equal.
func (f Filter) Match(doc Doc) bool {
	val, ok := doc[f.Field]
	if !ok {
		return false
	}
	want := normalize(f.Value)
	switch f.Op {
	case OpEqual:
		return reflect.DeepEqual(normalize(val), want)
	case OpArrayContains:
		items, ok := normalize(val).([]interface{})
		if !ok {
			return false
		}
		for _, item := range items {
			if reflect.DeepEqual(item, want) {
				return true
			}
		}
	}
	return false
}

// Now returns the timestamp stamped on created/updated records.
var Now = func() time.Time { return time.Now().UTC() } // mockable

func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Encode converts a struct into a Doc using its JSON field names.
func Encode(src interface{}) (Doc, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	doc := make(Doc)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode fills dst (a struct pointer) from doc.
func Decode(doc Doc, dst interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Clone returns a deep copy of doc.
func Clone(doc Doc) Doc {
	out, _ := normalize(doc).(map[string]interface{})
	if out == nil {
		return Doc{}
	}
	return out
}

// ID returns the id of doc.
func ID(doc Doc) string {
	id, _ := doc[FieldID].(string)
	return id
}

func normalize(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
