package user

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/record"
)

var (
	// errors
	ErrNotFound    = errors.WithMessage(record.ErrNotFound, "user")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryUsers returns all users, or only those having role when it is not empty.
		QueryUsers(ctx context.Context, role string) ([]User, error)
		// UpdateUser writes the profile of usr; rating, earnings and login stamps are kept as stored.
		UpdateUser(ctx context.Context, usr User) (User, error)
		// PatchUser writes only the fields set in patch.
		PatchUser(ctx context.Context, id string, patch Patch) (User, error)
		AddEarnings(ctx context.Context, id string, amount float64) error
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		QueryTutors(ctx context.Context) ([]User, error)
		UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error)
		UpdatePaymentDetails(ctx context.Context, id string, pd PaymentDetails) (User, error)
		SetPassword(ctx context.Context, id, pwd string) error
		SetActive(ctx context.Context, id string, active bool) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SignOut(ctx context.Context, id string) error
		AddEarnings(ctx context.Context, id string, amount float64) error
		SetRating(ctx context.Context, id string, rating float64) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc}
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Clean()
	return validate.Struct(nu)
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Clean()
	return validate.Struct(up)
}

func (pd *PaymentDetails) Validate(validate *validator.Validate) error {
	pd.Clean()
	return validate.Struct(pd)
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if _, err := svc.repo.GetUserByEmail(ctx, nu.Email); err == nil {
		return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, errors.Wrap(err, "checking email uniqueness")
	}

	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Roles:     nu.Roles,
		IsActive:  true,
		Expertise: []string{},
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}

	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) QueryTutors(ctx context.Context) ([]User, error) {
	tutors, err := svc.repo.QueryUsers(ctx, RoleTutor)
	if err != nil {
		return nil, err
	}
	active := make([]User, 0, len(tutors))
	for _, t := range tutors {
		if t.IsActive {
			active = append(active, t.Public())
		}
	}
	return active, nil
}

func (svc *service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	up.Clean()
	patch := Patch{Name: up.Name, Bio: up.Bio}
	if up.Expertise != nil {
		patch.Expertise = &up.Expertise
	}
	if up.HourlyRate != nil {
		rate := core.RoundCents(*up.HourlyRate)
		patch.HourlyRate = &rate
	}
	return svc.repo.PatchUser(ctx, id, patch)
}

func (svc *service) UpdatePaymentDetails(ctx context.Context, id string, pd PaymentDetails) (User, error) {
	pd.Clean()
	if pd.IsEmpty() {
		return svc.repo.PatchUser(ctx, id, Patch{ClearPaymentDetails: true})
	}
	return svc.repo.PatchUser(ctx, id, Patch{PaymentDetails: &pd})
}

func (svc *service) SetPassword(ctx context.Context, id, pwd string) error {
	var usr User
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err := svc.repo.PatchUser(ctx, id, Patch{PasswordHash: usr.PasswordHash})
	return err
}

func (svc *service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	return svc.repo.PatchUser(ctx, id, Patch{IsActive: &active})
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := record.Now()
	return svc.repo.PatchUser(ctx, usr.ID, Patch{LastLogin: &now})
}

func (svc *service) SignOut(ctx context.Context, id string) error {
	now := record.Now()
	_, err := svc.repo.PatchUser(ctx, id, Patch{SignedOutAt: &now})
	return err
}

func (svc *service) AddEarnings(ctx context.Context, id string, amount float64) error {
	return svc.repo.AddEarnings(ctx, id, amount)
}

func (svc *service) SetRating(ctx context.Context, id string, rating float64) error {
	_, err := svc.repo.PatchUser(ctx, id, Patch{Rating: &rating})
	return err
}

func (svc *service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to Tutorly",
		TemplateName: "welcome",
		TemplateData: usr,
	})
}
