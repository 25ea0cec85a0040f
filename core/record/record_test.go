package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{name: "equal", filter: Eq("status", "paid")},
		{name: "array contains", filter: ArrayContains("tags", "math")},
		{name: "no field", filter: Filter{Op: OpEqual, Value: 1}, wantErr: true},
		{name: "unknown operator", filter: Filter{Field: "price", Op: ">=", Value: 1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.True(t, errors.Is(Filter{Field: "x", Op: "in"}.Validate(), ErrInvalidOp))
}

func TestFilter_Match(t *testing.T) {
	doc := Doc{
		"status": "paid",
		"price":  float64(20),
		"tags":   []interface{}{"math", "algebra"},
		"nested": map[string]interface{}{"a": 1},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "equal string", filter: Eq("status", "paid"), want: true},
		{name: "different string", filter: Eq("status", "pending")},
		{name: "int matches float", filter: Eq("price", 20), want: true},
		{name: "missing field", filter: Eq("subject", "math")},
		{name: "array contains", filter: ArrayContains("tags", "algebra"), want: true},
		{name: "array does not contain", filter: ArrayContains("tags", "physics")},
		{name: "array contains on scalar", filter: ArrayContains("status", "paid")},
		{name: "equal object", filter: Eq("nested", map[string]int{"a": 1}), want: true},
		{name: "unknown operator", filter: Filter{Field: "status", Op: "!=", Value: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(doc))
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	type item struct {
		ID    string   `json:"id"`
		Name  string   `json:"name"`
		Tags  []string `json:"tags"`
		Price float64  `json:"price"`
	}

	doc, err := Encode(item{ID: "1", Name: "Algebra", Tags: []string{"math"}, Price: 2.5})
	require.NoError(t, err)
	assert.Equal(t, Doc{"id": "1", "name": "Algebra", "tags": []interface{}{"math"}, "price": 2.5}, doc)
	assert.Equal(t, "1", ID(doc))

	var got item
	require.NoError(t, Decode(doc, &got))
	assert.Equal(t, item{ID: "1", Name: "Algebra", Tags: []string{"math"}, Price: 2.5}, got)

	_, err = Encode(make(chan int))
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	doc := Doc{"tags": []interface{}{"math"}, "meta": map[string]interface{}{"a": "b"}}
	clone := Clone(doc)
	assert.Equal(t, doc, clone)

	clone["tags"].([]interface{})[0] = "physics"
	clone["meta"].(map[string]interface{})["a"] = "c"
	assert.Equal(t, "math", doc["tags"].([]interface{})[0])
	assert.Equal(t, "b", doc["meta"].(map[string]interface{})["a"])

	assert.Equal(t, Doc{}, Clone(nil))
}
