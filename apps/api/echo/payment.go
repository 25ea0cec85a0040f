package echoapi

import (
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core/payment"
)

const signatureHeader = "Stripe-Signature"

type paymentApi struct {
	svc *payment.Service
}

func registerPaymentAPI(g *echo.Group, deps ServerDeps) {
	api := paymentApi{svc: deps.PaymentSvc}

	g.POST("/api/create-payment-intent", api.createIntent)
	g.POST("/v1/payments/webhook", api.webhook, middleware.BodyLimit("1M"))
}

// createIntent answers either 200 with the client secret or 500, whatever the failure.
func (api *paymentApi) createIntent(ctx echo.Context) error {
	var data CreateIntentRequest
	if err := ctx.Bind(&data); err != nil {
		return errPaymentIntent(errors.Wrap(err, "binding to CreateIntentRequest"))
	}

	secret, err := api.svc.CreateIntent(ctx.Request().Context(), data.Amount, data.TutorID, data.SessionID)
	if err != nil {
		return errPaymentIntent(err)
	}
	return ctx.JSON(http.StatusOK, CreateIntentResponse{ClientSecret: secret})
}

func (api *paymentApi) webhook(ctx echo.Context) error {
	payload, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading webhook payload")
	}
	if err = api.svc.HandleWebhook(ctx.Request().Context(), payload, ctx.Request().Header.Get(signatureHeader)); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"received": true})
}

type (
	CreateIntentRequest struct {
		Amount    float64 `json:"amount"`
		TutorID   string  `json:"tutorId"`
		SessionID string  `json:"sessionId"`
	}

	CreateIntentResponse struct {
		ClientSecret string `json:"clientSecret"`
	}
)
