package review

import (
	"sort"
	"time"

	"github.com/trezcool/tutorly/core"
)

type Review struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	TutorID   string    `json:"tutorId"`
	StudentID string    `json:"studentId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewReview struct {
	SessionID string `json:"sessionId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

func (nr *NewReview) Clean() {
	nr.SessionID = core.CleanString(nr.SessionID)
	nr.Comment = core.CleanString(nr.Comment)
}

// AverageRating is the mean rating of reviews, 0 when there are none.
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}

// Latest returns up to n reviews, most recent first.
func Latest(reviews []Review, n int) []Review {
	sorted := make([]Review, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
