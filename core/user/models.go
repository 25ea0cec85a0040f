package user

import (
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/tutorly/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTutor   = "tutor"
	RoleStudent = "student"
)

var (
	AllRoles    = []string{RoleAdmin, RoleStudent, RoleTutor} // sorted
	PublicRoles = []string{RoleStudent, RoleTutor}
)

// PaymentDetails are shown to students paying a tutor outside of the card processor.
type PaymentDetails struct {
	PhoneNumber string `json:"phoneNumber,omitempty" validate:"omitempty,max=32"`
	UpiID       string `json:"upiId,omitempty" validate:"omitempty,max=64"`
	BankAccount string `json:"bankAccount,omitempty" validate:"omitempty,max=64"`
}

type User struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	Name           string          `json:"name"`
	Bio            string          `json:"bio"`
	Expertise      []string        `json:"expertise"`
	HourlyRate     float64         `json:"hourlyRate"`
	Rating         float64         `json:"rating"`
	TotalEarnings  float64         `json:"totalEarnings"`
	PaymentDetails *PaymentDetails `json:"paymentDetails,omitempty"`
	Roles          []string        `json:"roles"`
	IsActive       bool            `json:"isActive"`
	PasswordHash   []byte          `json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`             // UTC
	UpdatedAt      time.Time       `json:"updatedAt"`             // UTC
	LastLogin      time.Time       `json:"lastLogin"`             // UTC
	SignedOutAt    time.Time       `json:"signedOutAt,omitempty"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool   { return u.HasRole(RoleAdmin) }
func (u *User) IsTutor() bool   { return u.HasRole(RoleTutor) }
func (u *User) IsStudent() bool { return u.HasRole(RoleStudent) }

// Public returns the profile visible to other users.
func (u User) Public() User {
	u.PaymentDetails = nil
	u.LastLogin = time.Time{}
	u.SignedOutAt = time.Time{}
	return u
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name     string   `json:"name" validate:"required,notblank"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required"`
	Roles    []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Roles = cleanRoles(nu.Roles)
}

// UpdateProfile defines what information a user may change on their own profile.
type UpdateProfile struct {
	Name       *string  `json:"name" validate:"omitempty,notblank"`
	Bio        *string  `json:"bio" validate:"omitempty,max=2000"`
	Expertise  []string `json:"expertise" validate:"omitempty,dive,notblank"`
	HourlyRate *float64 `json:"hourlyRate" validate:"omitempty,min=0"`
}

func (up *UpdateProfile) Clean() {
	if up.Name != nil {
		name := core.CleanString(*up.Name)
		up.Name = &name
	}
	if up.Bio != nil {
		bio := core.CleanString(*up.Bio)
		up.Bio = &bio
	}
	if up.Expertise != nil {
		seen := make(map[string]bool, len(up.Expertise))
		cleaned := make([]string, 0, len(up.Expertise))
		for _, e := range up.Expertise {
			e = core.CleanString(e)
			if e != "" && !seen[e] {
				seen[e] = true
				cleaned = append(cleaned, e)
			}
		}
		up.Expertise = cleaned
	}
}

// Patch lists the user fields a write changes; nil fields are left untouched.
// Counters maintained by other writers (totalEarnings) are never part of a Patch.
type Patch struct {
	Name                *string         `json:"name,omitempty"`
	Bio                 *string         `json:"bio,omitempty"`
	Expertise           *[]string       `json:"expertise,omitempty"`
	HourlyRate          *float64        `json:"hourlyRate,omitempty"`
	Rating              *float64        `json:"rating,omitempty"`
	IsActive            *bool           `json:"isActive,omitempty"`
	LastLogin           *time.Time      `json:"lastLogin,omitempty"`
	SignedOutAt         *time.Time      `json:"signedOutAt,omitempty"`
	PaymentDetails      *PaymentDetails `json:"paymentDetails,omitempty"`
	ClearPaymentDetails bool            `json:"-"`
	PasswordHash        []byte          `json:"-"`
}

func (pd *PaymentDetails) Clean() {
	pd.PhoneNumber = core.CleanString(pd.PhoneNumber)
	pd.UpiID = core.CleanString(pd.UpiID)
	pd.BankAccount = core.CleanString(pd.BankAccount)
}

func (pd PaymentDetails) IsEmpty() bool {
	return pd.PhoneNumber == "" && pd.UpiID == "" && pd.BankAccount == ""
}

func cleanRoles(roles []string) []string {
	if len(roles) == 0 {
		return []string{RoleStudent}
	}
	seen := make(map[string]bool, len(roles))
	cleaned := make([]string, 0, len(roles))
	for _, r := range roles {
		r = core.CleanString(r, true /* lower */)
		if !seen[r] {
			seen[r] = true
			cleaned = append(cleaned, r)
		}
	}
	sort.Strings(cleaned)
	return cleaned
}
