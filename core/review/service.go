package review

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/session"
	"github.com/trezcool/tutorly/core/user"
)

var (
	// errors
	ErrNotFound      = errors.WithMessage(record.ErrNotFound, "review")
	ErrAlreadyExists = errors.New("this session has already been reviewed")
)

type (
	Repository interface {
		CreateReview(ctx context.Context, r Review) (Review, error)
		QueryReviews(ctx context.Context, field, value string) ([]Review, error)
	}

	Service interface {
		Create(ctx context.Context, student user.User, nr NewReview) (Review, error)
		ListByTutor(ctx context.Context, tutorID string) ([]Review, error)
	}

	service struct {
		repo    Repository
		sessSvc session.Service
		usrSvc  user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, sessSvc session.Service, usrSvc user.Service) Service {
	return &service{repo: repo, sessSvc: sessSvc, usrSvc: usrSvc}
}

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Clean()
	return validate.Struct(nr)
}

// Create stores the review of a completed session by its student and refreshes the tutor's rating.
func (svc *service) Create(ctx context.Context, student user.User, nr NewReview) (Review, error) {
	nr.Clean()
	sessionErr := func(msg string) error {
		return core.NewValidationError(nil, core.FieldError{Field: "sessionId", Error: msg})
	}

	sess, err := svc.sessSvc.Get(ctx, nr.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Review{}, sessionErr("session not found")
		}
		return Review{}, errors.Wrap(err, "finding session")
	}
	if sess.StudentID != student.ID {
		return Review{}, sessionErr("session not found")
	}
	if sess.Status != session.StatusCompleted {
		return Review{}, sessionErr("only completed sessions can be reviewed")
	}

	existing, err := svc.repo.QueryReviews(ctx, "sessionId", sess.ID)
	if err != nil {
		return Review{}, errors.Wrap(err, "querying session reviews")
	}
	if len(existing) > 0 {
		return Review{}, core.NewValidationError(ErrAlreadyExists, core.FieldError{Field: "sessionId", Error: ErrAlreadyExists.Error()})
	}

	r, err := svc.repo.CreateReview(ctx, Review{
		SessionID: sess.ID,
		TutorID:   sess.TutorID,
		StudentID: student.ID,
		Rating:    nr.Rating,
		Comment:   nr.Comment,
	})
	if err != nil {
		return Review{}, errors.Wrap(err, "creating review")
	}

	reviews, err := svc.repo.QueryReviews(ctx, "tutorId", sess.TutorID)
	if err != nil {
		return Review{}, errors.Wrap(err, "querying tutor reviews")
	}
	if err = svc.usrSvc.SetRating(ctx, sess.TutorID, AverageRating(reviews)); err != nil {
		return Review{}, errors.Wrap(err, "updating tutor rating")
	}
	return r, nil
}

func (svc *service) ListByTutor(ctx context.Context, tutorID string) ([]Review, error) {
	return svc.repo.QueryReviews(ctx, "tutorId", tutorID)
}
