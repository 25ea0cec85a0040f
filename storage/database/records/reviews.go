package records

import (
	"context"

	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/review"
)

func (repo *Repository) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	var created review.Review
	if err := repo.create(ctx, Reviews, r, &created); err != nil {
		return review.Review{}, err
	}
	return created, nil
}

func (repo *Repository) QueryReviews(ctx context.Context, field, value string) ([]review.Review, error) {
	var reviews []*review.Review
	err := repo.query(ctx, Reviews, func() interface{} {
		reviews = append(reviews, new(review.Review))
		return reviews[len(reviews)-1]
	}, record.Eq(field, value))
	if err != nil {
		return nil, err
	}
	res := make([]review.Review, 0, len(reviews))
	for _, r := range reviews {
		res = append(res, *r)
	}
	return res, nil
}
