package payment

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/session"
	"github.com/trezcool/tutorly/core/user"
)

const (
	EventIntentSucceeded = "payment_intent.succeeded"

	MetaTutorID   = "tutorId"
	MetaSessionID = "sessionId"
)

var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrSessionNotPayable = errors.New("this session cannot be paid")
)

type (
	// Intent is a charge to be confirmed client-side.
	Intent struct {
		Amount   int64 // minor units
		Currency string
		Metadata map[string]string
	}

	// Event is a verified notification from the processor.
	Event struct {
		ID            string
		Type          string
		IntentID      string
		Amount        int64 // minor units
		Currency      string
		PaymentMethod string
		Metadata      map[string]string
	}

	// Processor is a hosted payment processor.
	Processor interface {
		// CreateIntent returns the client secret of a new payment intent.
		CreateIntent(ctx context.Context, intent Intent) (string, error)
		// ParseWebhook verifies the signature of a webhook payload and decodes it.
		ParseWebhook(payload []byte, signature string) (Event, error)
	}

	// SessionPayment is what a student needs to pay for a session.
	SessionPayment struct {
		ClientSecret   string               `json:"clientSecret"`
		Amount         float64              `json:"amount"`
		Currency       string               `json:"currency"`
		PaymentDetails *user.PaymentDetails `json:"paymentDetails,omitempty"`
	}

	receiptData struct {
		StudentName string
		TutorName   string
		Subject     string
		Amount      string
		Currency    string
		SessionID   string
		IntentID    string
	}

	Service struct {
		processor Processor
		sessSvc   session.Service
		usrSvc    user.Service
		mailSvc   core.EmailService
		logger    core.Logger
		currency  string
	}
)

func NewService(
	conf *core.Config,
	processor Processor,
	sessSvc session.Service,
	usrSvc user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(processor, "processor"),
		vala.IsNotNil(sessSvc, "sessSvc"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	currency := strings.ToLower(conf.Payment.Currency)
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		processor: processor,
		sessSvc:   sessSvc,
		usrSvc:    usrSvc,
		mailSvc:   mailSvc,
		logger:    logger,
		currency:  currency,
	}
}

// ToMinorUnits converts an amount in major units (e.g. dollars) to minor units (e.g. cents).
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateIntent creates a processor-side payment intent tagged with the tutor (and session) it pays for.
// TODO: send an idempotency key derived from the session id; a client retry currently creates a second intent.
func (svc *Service) CreateIntent(ctx context.Context, amount float64, tutorID, sessionID string) (string, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be greater than 0"})
	}
	if core.CleanString(tutorID) == "" {
		return "", core.NewValidationError(nil, core.FieldError{Field: "tutorId", Error: "this field is required"})
	}

	meta := map[string]string{MetaTutorID: core.CleanString(tutorID)}
	if sessionID = core.CleanString(sessionID); sessionID != "" {
		meta[MetaSessionID] = sessionID
	}

	secret, err := svc.processor.CreateIntent(ctx, Intent{
		Amount:   ToMinorUnits(amount),
		Currency: svc.currency,
		Metadata: meta,
	})
	return secret, errors.Wrap(err, "creating payment intent")
}

// PaySession creates an intent for the price of a session booked by student.
// The tutor's payment details are returned for students paying outside of the processor.
func (svc *Service) PaySession(ctx context.Context, student user.User, sessionID string) (SessionPayment, error) {
	sess, err := svc.sessSvc.Get(ctx, sessionID)
	if err != nil {
		return SessionPayment{}, err
	}
	if sess.StudentID != student.ID {
		return SessionPayment{}, session.ErrNotFound
	}
	if sess.IsPaid() || sess.Status == session.StatusCancelled || sess.Price <= 0 {
		return SessionPayment{}, core.NewValidationError(ErrSessionNotPayable)
	}
	tutor, err := svc.usrSvc.GetByID(ctx, sess.TutorID)
	if err != nil {
		return SessionPayment{}, errors.Wrap(err, "finding tutor")
	}

	secret, err := svc.CreateIntent(ctx, sess.Price, sess.TutorID, sess.ID)
	if err != nil {
		return SessionPayment{}, err
	}
	return SessionPayment{
		ClientSecret:   secret,
		Amount:         sess.Price,
		Currency:       svc.currency,
		PaymentDetails: tutor.PaymentDetails,
	}, nil
}

// HandleWebhook verifies and processes a processor notification.
// A succeeded intent carrying a session id marks that session paid, once, and emails a receipt.
func (svc *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := svc.processor.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if event.Type != EventIntentSucceeded {
		svc.logger.Debug(fmt.Sprintf("ignoring payment event %s (%s)", event.ID, event.Type))
		return nil
	}

	sessionID := event.Metadata[MetaSessionID]
	if sessionID == "" {
		svc.logger.Info(fmt.Sprintf("payment %s is not linked to a session", event.IntentID))
		return nil
	}
	sess, err := svc.sessSvc.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			svc.logger.Warn(fmt.Sprintf("payment %s references unknown session %s", event.IntentID, sessionID))
			return nil
		}
		return errors.Wrap(err, "finding paid session")
	}
	if event.Amount < ToMinorUnits(sess.Price) || !strings.EqualFold(event.Currency, svc.currency) {
		svc.logger.Warn(
			fmt.Sprintf("payment %s does not cover session %s", event.IntentID, sess.ID),
			map[string]interface{}{"amount": event.Amount, "currency": event.Currency, "price": sess.Price},
		)
		return nil
	}

	sess, err = svc.sessSvc.MarkPaid(ctx, sess.ID, event.IntentID, event.PaymentMethod)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyPaid) { // replayed event
			return nil
		}
		return errors.Wrap(err, "marking session paid")
	}

	svc.sendReceipt(ctx, sess, event)
	return nil
}

func (svc *Service) sendReceipt(ctx context.Context, sess session.Session, event Event) {
	student, err := svc.usrSvc.GetByID(ctx, sess.StudentID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending receipt: finding student %s: %v", sess.StudentID, err), err)
		return
	}
	var tutorName string
	if tutor, err := svc.usrSvc.GetByID(ctx, sess.TutorID); err == nil {
		tutorName = tutor.Name
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Payment received",
		TemplateName: "payment_receipt",
		TemplateData: receiptData{
			StudentName: student.Name,
			TutorName:   tutorName,
			Subject:     sess.Subject,
			Amount:      fmt.Sprintf("%.2f", float64(event.Amount)/100),
			Currency:    strings.ToUpper(event.Currency),
			SessionID:   sess.ID,
			IntentID:    event.IntentID,
		},
	})
}
