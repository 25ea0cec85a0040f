package session

import (
	"time"

	"github.com/trezcool/tutorly/core"
)

// Statuses
const (
	StatusScheduled = "scheduled"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// allowed status transitions: from -> to
var transitions = map[string][]string{
	StatusScheduled: {StatusOngoing, StatusCancelled},
	StatusOngoing:   {StatusCompleted, StatusCancelled},
}

type Session struct {
	ID              string    `json:"id"`
	TutorID         string    `json:"tutorId"`
	StudentID       string    `json:"studentId"`
	Subject         string    `json:"subject"`
	Description     string    `json:"description"`
	Price           float64   `json:"price"`
	Duration        int       `json:"duration"` // minutes
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"paymentStatus"`
	PaymentMethod   string    `json:"paymentMethod,omitempty"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	ScheduledFor    time.Time `json:"scheduledFor"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (s Session) HasParticipant(userID string) bool {
	return s.TutorID == userID || s.StudentID == userID
}

func (s Session) IsPaid() bool { return s.PaymentStatus == PaymentCompleted }

// CanTransition reports whether status may move from s.Status to `to`.
func (s Session) CanTransition(to string) bool {
	for _, allowed := range transitions[s.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TotalCompleted sums the price of completed sessions.
func TotalCompleted(sessions []Session) float64 {
	var total float64
	for _, s := range sessions {
		if s.Status == StatusCompleted {
			total += s.Price
		}
	}
	return core.RoundCents(total)
}

// NewSession contains information needed to book a Session.
type NewSession struct {
	TutorID      string    `json:"tutorId" validate:"required"`
	Subject      string    `json:"subject" validate:"required,notblank,max=200"`
	Description  string    `json:"description" validate:"max=2000"`
	Duration     int       `json:"duration" validate:"required,min=15,max=480"`
	ScheduledFor time.Time `json:"scheduledFor" validate:"required"`
}

func (ns *NewSession) Clean() {
	ns.TutorID = core.CleanString(ns.TutorID)
	ns.Subject = core.CleanString(ns.Subject)
	ns.Description = core.CleanString(ns.Description)
}

type UpdateStatus struct {
	Status string `json:"status" validate:"required,oneof=ongoing completed cancelled"`
}
