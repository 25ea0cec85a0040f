// Package dashboard aggregates the per-role summaries shown on the tutor and student home pages.
package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core/review"
	"github.com/trezcool/tutorly/core/session"
	"github.com/trezcool/tutorly/core/user"
)

const latestReviewsCount = 5

type (
	TutorSummary struct {
		Sessions         []session.Session `json:"sessions"`
		UpcomingSessions []session.Session `json:"upcomingSessions"`
		Earnings         float64           `json:"earnings"`
		AverageRating    float64           `json:"averageRating"`
		StudentCount     int               `json:"studentCount"`
		LatestReviews    []review.Review   `json:"latestReviews"`
	}

	StudentSummary struct {
		Sessions      []session.Session `json:"sessions"`
		TotalSpent    float64           `json:"totalSpent"`
		UpcomingCount int               `json:"upcomingCount"`
	}

	Service struct {
		sessSvc   session.Service
		reviewSvc review.Service
	}
)

func NewService(sessSvc session.Service, reviewSvc review.Service) *Service {
	return &Service{sessSvc: sessSvc, reviewSvc: reviewSvc}
}

func (svc *Service) Tutor(ctx context.Context, tutor user.User) (TutorSummary, error) {
	sessions, err := svc.sessSvc.List(ctx, tutor.ID, user.RoleTutor)
	if err != nil {
		return TutorSummary{}, errors.Wrap(err, "listing tutor sessions")
	}
	reviews, err := svc.reviewSvc.ListByTutor(ctx, tutor.ID)
	if err != nil {
		return TutorSummary{}, errors.Wrap(err, "listing tutor reviews")
	}

	students := make(map[string]struct{})
	upcoming := make([]session.Session, 0)
	for _, s := range sessions {
		students[s.StudentID] = struct{}{}
		if s.Status == session.StatusScheduled {
			upcoming = append(upcoming, s)
		}
	}

	return TutorSummary{
		Sessions:         sessions,
		UpcomingSessions: upcoming,
		Earnings:         session.TotalCompleted(sessions),
		AverageRating:    review.AverageRating(reviews),
		StudentCount:     len(students),
		LatestReviews:    review.Latest(reviews, latestReviewsCount),
	}, nil
}

func (svc *Service) Student(ctx context.Context, student user.User) (StudentSummary, error) {
	sessions, err := svc.sessSvc.List(ctx, student.ID, user.RoleStudent)
	if err != nil {
		return StudentSummary{}, errors.Wrap(err, "listing student sessions")
	}

	var upcoming int
	for _, s := range sessions {
		if s.Status == session.StatusScheduled {
			upcoming++
		}
	}
	return StudentSummary{
		Sessions:      sessions,
		TotalSpent:    session.TotalCompleted(sessions),
		UpcomingCount: upcoming,
	}, nil
}
