package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAverageRating(t *testing.T) {
	tests := []struct {
		name    string
		reviews []Review
		want    float64
	}{
		{name: "none", want: 0},
		{name: "one", reviews: []Review{{Rating: 5}}, want: 5},
		{name: "mean", reviews: []Review{{Rating: 4}, {Rating: 2}}, want: 3},
		{name: "fraction", reviews: []Review{{Rating: 4}, {Rating: 5}}, want: 4.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AverageRating(tt.reviews))
		})
	}
}

func TestLatest(t *testing.T) {
	now := time.Now()
	reviews := []Review{
		{ID: "old", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "new", CreatedAt: now},
		{ID: "mid", CreatedAt: now.Add(-time.Hour)},
	}

	latest := Latest(reviews, 2)
	if assert.Len(t, latest, 2) {
		assert.Equal(t, "new", latest[0].ID)
		assert.Equal(t, "mid", latest[1].ID)
	}
	assert.Equal(t, "old", reviews[0].ID, "input must not be reordered")
	assert.Len(t, Latest(reviews, 10), 3)
	assert.Empty(t, Latest(nil, 5))
}
