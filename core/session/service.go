package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/user"
)

var (
	// errors
	ErrNotFound          = errors.WithMessage(record.ErrNotFound, "session")
	ErrAlreadyPaid       = errors.New("session already paid")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotAllowed        = errors.New("not allowed to change this session")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		// QuerySessions returns the sessions where field ("tutorId" or "studentId") equals userID.
		QuerySessions(ctx context.Context, field, userID string) ([]Session, error)
		// UpdateStatus sets the status of a session currently in status `from`.
		UpdateStatus(ctx context.Context, id, from, to string) (bool, error)
		// MarkPaid sets paymentStatus to completed if it is still pending.
		MarkPaid(ctx context.Context, id, intentID, method string) (bool, error)
	}

	Service interface {
		Book(ctx context.Context, student user.User, ns NewSession) (Session, error)
		Get(ctx context.Context, id string) (Session, error)
		List(ctx context.Context, userID, role string) ([]Session, error)
		UpdateStatus(ctx context.Context, id string, actor user.User, status string) (Session, error)
		MarkPaid(ctx context.Context, id, intentID, method string) (Session, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service) Service {
	return &service{repo: repo, usrSvc: usrSvc}
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Clean()
	return validate.Struct(ns)
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status, true /* lower */)
	return validate.Struct(us)
}

// Book creates a scheduled session between student and the requested tutor.
// The price is the tutor's hourly rate prorated over the session duration.
func (svc *service) Book(ctx context.Context, student user.User, ns NewSession) (Session, error) {
	ns.Clean()
	tutor, err := svc.usrSvc.GetByID(ctx, ns.TutorID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Session{}, core.NewValidationError(nil, core.FieldError{Field: "tutorId", Error: "tutor not found"})
		}
		return Session{}, errors.Wrap(err, "finding tutor")
	}
	if !tutor.IsTutor() || !tutor.IsActive {
		return Session{}, core.NewValidationError(nil, core.FieldError{Field: "tutorId", Error: "tutor not found"})
	}
	if tutor.ID == student.ID {
		return Session{}, core.NewValidationError(nil, core.FieldError{Field: "tutorId", Error: "cannot book a session with yourself"})
	}
	if ns.ScheduledFor.Before(nowFunc()) {
		return Session{}, core.NewValidationError(nil, core.FieldError{Field: "scheduledFor", Error: "must be in the future"})
	}

	sess := Session{
		TutorID:       tutor.ID,
		StudentID:     student.ID,
		Subject:       ns.Subject,
		Description:   ns.Description,
		Price:         core.RoundCents(tutor.HourlyRate * float64(ns.Duration) / 60),
		Duration:      ns.Duration,
		Status:        StatusScheduled,
		PaymentStatus: PaymentPending,
		ScheduledFor:  ns.ScheduledFor.UTC(),
	}
	sess, err = svc.repo.CreateSession(ctx, sess)
	return sess, errors.Wrap(err, "creating session")
}

func (svc *service) Get(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *service) List(ctx context.Context, userID, role string) ([]Session, error) {
	field := "studentId"
	if role == user.RoleTutor {
		field = "tutorId"
	}
	return svc.repo.QuerySessions(ctx, field, userID)
}

// UpdateStatus moves a session along its lifecycle.
// Only the tutor may start or complete a session; either participant may cancel it.
// Completing a session credits its price to the tutor's earnings.
func (svc *service) UpdateStatus(ctx context.Context, id string, actor user.User, status string) (Session, error) {
	sess, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !sess.HasParticipant(actor.ID) && !actor.IsAdmin() {
		return Session{}, ErrNotAllowed
	}
	if status != StatusCancelled && sess.TutorID != actor.ID && !actor.IsAdmin() {
		return Session{}, ErrNotAllowed
	}
	if !sess.CanTransition(status) {
		return Session{}, core.NewValidationError(ErrInvalidTransition, core.FieldError{
			Field: "status",
			Error: fmt.Sprintf("cannot go from %s to %s", sess.Status, status),
		})
	}

	applied, err := svc.repo.UpdateStatus(ctx, id, sess.Status, status)
	if err != nil {
		return Session{}, errors.Wrap(err, "updating status")
	}
	if !applied { // changed concurrently
		return Session{}, core.NewValidationError(ErrInvalidTransition, core.FieldError{Field: "status", Error: "session was modified, try again"})
	}

	if status == StatusCompleted {
		if err = svc.usrSvc.AddEarnings(ctx, sess.TutorID, sess.Price); err != nil {
			return Session{}, errors.Wrap(err, "crediting tutor earnings")
		}
	}
	return svc.repo.GetSession(ctx, id)
}

// MarkPaid records a confirmed payment. It must only be called once the processor confirmed the charge.
func (svc *service) MarkPaid(ctx context.Context, id, intentID, method string) (Session, error) {
	applied, err := svc.repo.MarkPaid(ctx, id, intentID, method)
	if err != nil {
		return Session{}, errors.Wrap(err, "marking session paid")
	}
	if !applied {
		return Session{}, ErrAlreadyPaid
	}
	return svc.repo.GetSession(ctx, id)
}
