package paymentsvc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"

	"github.com/trezcool/tutorly/core/payment"
	"github.com/trezcool/tutorly/tests"
)

func sign(payload []byte, secret string, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(t))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", t, hex.EncodeToString(mac.Sum(nil)))
}

func newTestProcessor(t *testing.T, handler http.HandlerFunc) *StripeProcessor {
	t.Helper()
	conf := testutil.NewConfig()
	var backends *stripe.Backends
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		backends = &stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL:           stripe.String(srv.URL),
				LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelNull},
			}),
		}
	}
	return NewStripeProcessor(conf, backends)
}

func TestStripeProcessor_CreateIntent(t *testing.T) {
	var form map[string]string
	p := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form = make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","amount":1999,"currency":"usd","client_secret":"pi_1_secret_abc"}`))
	})

	secret, err := p.CreateIntent(context.Background(), payment.Intent{
		Amount:   1999,
		Currency: "usd",
		Metadata: map[string]string{payment.MetaTutorID: "tutor-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret_abc", secret)
	assert.Equal(t, "1999", form["amount"])
	assert.Equal(t, "usd", form["currency"])
	assert.Equal(t, "card", form["payment_method_types[0]"])
	assert.Equal(t, "tutor-1", form["metadata[tutorId]"])
}

func TestStripeProcessor_CreateIntent_error(t *testing.T) {
	p := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","message":"Your card was declined."}}`))
	})

	_, err := p.CreateIntent(context.Background(), payment.Intent{Amount: 100, Currency: "usd"})
	assert.Error(t, err)
}

func TestStripeProcessor_ParseWebhook(t *testing.T) {
	p := newTestProcessor(t, nil)
	secret := testutil.NewConfig().Payment.StripeWebhookSecret
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_1",
			"object": "payment_intent",
			"amount": 3000,
			"amount_received": 3000,
			"currency": "inr",
			"payment_method_types": ["card"],
			"metadata": {"sessionId": "s1", "tutorId": "t1"}
		}}
	}`, stripe.APIVersion))

	t.Run("valid", func(t *testing.T) {
		evt, err := p.ParseWebhook(payload, sign(payload, secret, time.Now()))
		require.NoError(t, err)
		assert.Equal(t, payment.Event{
			ID:            "evt_1",
			Type:          payment.EventIntentSucceeded,
			IntentID:      "pi_1",
			Amount:        3000,
			Currency:      "inr",
			PaymentMethod: "card",
			Metadata:      map[string]string{"sessionId": "s1", "tutorId": "t1"},
		}, evt)
	})

	for _, tt := range []struct {
		name      string
		signature string
	}{
		{name: "no signature"},
		{name: "wrong secret", signature: sign(payload, "whsec_other", time.Now())},
		{name: "too old", signature: sign(payload, secret, time.Now().Add(-time.Hour))},
		{name: "garbage", signature: "t=abc,v1=def"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseWebhook(payload, tt.signature)
			assert.True(t, errors.Is(err, payment.ErrInvalidSignature), "ParseWebhook() error = %v", err)
		})
	}

	t.Run("tampered payload", func(t *testing.T) {
		sig := sign(payload, secret, time.Now())
		_, err := p.ParseWebhook(append([]byte(" "), payload...), sig)
		assert.True(t, errors.Is(err, payment.ErrInvalidSignature))
	})
}

func TestStripeProcessor_ParseWebhook_otherObject(t *testing.T) {
	p := newTestProcessor(t, nil)
	secret := testutil.NewConfig().Payment.StripeWebhookSecret
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_2",
		"object": "event",
		"api_version": %q,
		"type": "charge.succeeded",
		"data": {"object": {"id": "ch_1", "object": "charge", "amount": 3000, "currency": "inr"}}
	}`, stripe.APIVersion))

	evt, err := p.ParseWebhook(payload, sign(payload, secret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, payment.Event{ID: "evt_2", Type: "charge.succeeded"}, evt)
}
