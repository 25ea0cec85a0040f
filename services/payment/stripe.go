// Package paymentsvc implements payment.Processor on Stripe.
package paymentsvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/payment"
)

type StripeProcessor struct {
	api           *client.API
	webhookSecret string
}

var _ payment.Processor = (*StripeProcessor)(nil)

// NewStripeProcessor creates a processor; backends may be nil to use Stripe's own.
func NewStripeProcessor(conf *core.Config, backends *stripe.Backends) *StripeProcessor {
	api := &client.API{}
	api.Init(conf.Payment.StripeSecretKey, backends)
	return &StripeProcessor{api: api, webhookSecret: conf.Payment.StripeWebhookSecret}
}

func (p *StripeProcessor) CreateIntent(ctx context.Context, intent payment.Intent) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(intent.Amount),
		Currency:           stripe.String(intent.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	for k, v := range intent.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", errors.Wrap(err, "stripe")
	}
	return pi.ClientSecret, nil
}

func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return payment.Event{}, errors.Wrap(payment.ErrInvalidSignature, err.Error())
	}

	evt := payment.Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return evt, nil
	}

	if object, _ := event.Data.Object["object"].(string); object != "" && object != "payment_intent" {
		return evt, nil
	}
	var pi stripe.PaymentIntent
	if err = json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return payment.Event{}, errors.Wrap(err, "decoding payment intent")
	}
	evt.IntentID = pi.ID
	evt.Amount = pi.AmountReceived
	if evt.Amount == 0 {
		evt.Amount = pi.Amount
	}
	evt.Currency = string(pi.Currency)
	evt.Metadata = pi.Metadata
	if pi.PaymentMethod != nil && pi.PaymentMethod.Type != "" {
		evt.PaymentMethod = string(pi.PaymentMethod.Type)
	} else if len(pi.PaymentMethodTypes) > 0 {
		evt.PaymentMethod = pi.PaymentMethodTypes[0]
	}
	return evt, nil
}
