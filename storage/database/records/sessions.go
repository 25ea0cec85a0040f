package records

import (
	"context"

	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/session"
)

func (repo *Repository) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	var created session.Session
	if err := repo.create(ctx, Sessions, s, &created); err != nil {
		return session.Session{}, err
	}
	return created, nil
}

func (repo *Repository) GetSession(ctx context.Context, id string) (session.Session, error) {
	var s session.Session
	if err := repo.get(ctx, Sessions, id, &s, session.ErrNotFound); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

func (repo *Repository) QuerySessions(ctx context.Context, field, userID string) ([]session.Session, error) {
	var sessions []*session.Session
	err := repo.query(ctx, Sessions, func() interface{} {
		sessions = append(sessions, new(session.Session))
		return sessions[len(sessions)-1]
	}, record.Eq(field, userID))
	if err != nil {
		return nil, err
	}
	res := make([]session.Session, 0, len(sessions))
	for _, s := range sessions {
		res = append(res, *s)
	}
	return res, nil
}

func (repo *Repository) UpdateStatus(ctx context.Context, id, from, to string) (bool, error) {
	return repo.updateIf(ctx, Sessions, id,
		record.Eq("status", from),
		record.Doc{"status": to},
		session.ErrNotFound,
	)
}

func (repo *Repository) MarkPaid(ctx context.Context, id, intentID, method string) (bool, error) {
	return repo.updateIf(ctx, Sessions, id,
		record.Eq("paymentStatus", session.PaymentPending),
		record.Doc{
			"paymentStatus":   session.PaymentCompleted,
			"paymentIntentId": intentID,
			"paymentMethod":   method,
		},
		session.ErrNotFound,
	)
}
