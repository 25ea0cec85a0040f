package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalCompleted(t *testing.T) {
	tests := []struct {
		name     string
		sessions []Session
		want     float64
	}{
		{name: "none", want: 0},
		{name: "only completed count", sessions: []Session{{Status: StatusCompleted, Price: 10}, {Status: StatusScheduled, Price: 20}}, want: 10},
		{
			name: "rounded to cents",
			sessions: []Session{
				{Status: StatusCompleted, Price: 0.1},
				{Status: StatusCompleted, Price: 0.2},
				{Status: StatusCancelled, Price: 100},
				{Status: StatusOngoing, Price: 100},
			},
			want: 0.3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalCompleted(tt.sessions))
		})
	}
}

func TestSession_CanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{from: StatusScheduled, to: StatusOngoing, want: true},
		{from: StatusScheduled, to: StatusCancelled, want: true},
		{from: StatusScheduled, to: StatusCompleted},
		{from: StatusOngoing, to: StatusCompleted, want: true},
		{from: StatusOngoing, to: StatusCancelled, want: true},
		{from: StatusOngoing, to: StatusScheduled},
		{from: StatusCompleted, to: StatusCancelled},
		{from: StatusCancelled, to: StatusOngoing},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, Session{Status: tt.from}.CanTransition(tt.to))
		})
	}
}

func TestSession_HasParticipant(t *testing.T) {
	s := Session{TutorID: "t", StudentID: "s"}
	assert.True(t, s.HasParticipant("t"))
	assert.True(t, s.HasParticipant("s"))
	assert.False(t, s.HasParticipant("x"))
	assert.False(t, s.IsPaid())
	assert.True(t, Session{PaymentStatus: PaymentCompleted}.IsPaid())
}
