package records

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/user"
)

// userRecord is a user as stored: with its password hash.
type userRecord struct {
	user.User
	PasswordHash string `json:"passwordHash"`
}

func toUserRecord(usr user.User) userRecord {
	return userRecord{User: usr, PasswordHash: string(usr.PasswordHash)}
}

func (rec userRecord) toUser() user.User {
	usr := rec.User
	usr.PasswordHash = []byte(rec.PasswordHash)
	return usr
}

func (repo *Repository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	var rec userRecord
	if err := repo.create(ctx, Users, toUserRecord(usr), &rec); err != nil {
		return user.User{}, err
	}
	return rec.toUser(), nil
}

func (repo *Repository) GetUser(ctx context.Context, id string) (user.User, error) {
	var rec userRecord
	if err := repo.get(ctx, Users, id, &rec, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return rec.toUser(), nil
}

func (repo *Repository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var recs []*userRecord
	err := repo.query(ctx, Users, func() interface{} {
		recs = append(recs, new(userRecord))
		return recs[len(recs)-1]
	}, record.Eq("email", email))
	if err != nil {
		return user.User{}, err
	}
	if len(recs) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return recs[0].toUser(), nil
}

func (repo *Repository) QueryUsers(ctx context.Context, role string) ([]user.User, error) {
	var filters []record.Filter
	if role != "" {
		filters = append(filters, record.ArrayContains("roles", role))
	}
	var recs []*userRecord
	err := repo.query(ctx, Users, func() interface{} {
		recs = append(recs, new(userRecord))
		return recs[len(recs)-1]
	}, filters...)
	if err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toUser())
	}
	return users, nil
}

// fields owned by their own writers, never overwritten by UpdateUser
var userCounters = []string{"rating", "totalEarnings", "lastLogin", "signedOutAt"}

func (repo *Repository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc, err := record.Encode(toUserRecord(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "encoding record")
	}
	for _, field := range append(userCounters, record.FieldID, record.FieldCreatedAt, record.FieldUpdatedAt) {
		delete(doc, field)
	}
	return repo.patchUser(ctx, usr.ID, doc)
}

func (repo *Repository) PatchUser(ctx context.Context, id string, patch user.Patch) (user.User, error) {
	doc, err := record.Encode(patch)
	if err != nil {
		return user.User{}, errors.Wrap(err, "encoding patch")
	}
	if patch.PasswordHash != nil {
		doc["passwordHash"] = string(patch.PasswordHash)
	}
	if patch.ClearPaymentDetails {
		doc["paymentDetails"] = nil
	}
	return repo.patchUser(ctx, id, doc)
}

func (repo *Repository) patchUser(ctx context.Context, id string, doc record.Doc) (user.User, error) {
	if len(doc) > 0 {
		if err := repo.store.Update(ctx, Users, id, doc); err != nil {
			return user.User{}, trapNotFound(err, user.ErrNotFound)
		}
	}
	return repo.GetUser(ctx, id)
}

func (repo *Repository) AddEarnings(ctx context.Context, id string, amount float64) error {
	return trapNotFound(repo.store.Increment(ctx, Users, id, "totalEarnings", amount), user.ErrNotFound)
}
