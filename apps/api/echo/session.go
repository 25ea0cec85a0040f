package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/call"
	"github.com/trezcool/tutorly/core/payment"
	"github.com/trezcool/tutorly/core/session"
	"github.com/trezcool/tutorly/core/user"
)

const contextSessionKey = "session"

type sessionApi struct {
	conf       *core.Config
	svc        session.Service
	paymentSvc *payment.Service
	validate   *validator.Validate
}

func registerSessionAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{
		conf:       deps.Conf,
		svc:        deps.SessionSvc,
		paymentSvc: deps.PaymentSvc,
		validate:   deps.Validate,
	}

	sg := g.Group("/sessions", authed...)
	sg.POST("", api.book, roleMiddleware(user.RoleStudent))
	sg.GET("", api.query)

	// detail endpoints
	dg := sg.Group("/:id", participantMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("/status", api.updateStatus)
	dg.POST("/payment", api.pay, roleMiddleware(user.RoleStudent))
	dg.GET("/rendezvous", api.rendezvous)
}

// participantMiddleware loads the session of the `:id` param if the context user takes part in it.
// Other users get a 404.
func participantMiddleware(svc session.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			sess, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return err
			}
			if !sess.HasParticipant(usr.ID) && !usr.IsAdmin() {
				return session.ErrNotFound
			}
			ctx.Set(contextSessionKey, sess)
			return next(ctx)
		}
	}
}

func getContextSession(ctx echo.Context) (session.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(session.Session); ok {
		return sess, nil
	}
	return session.Session{}, errors.New("session not found in echo.Context")
}

// Handlers

func (api *sessionApi) book(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data session.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Book(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

// query lists the sessions of the context user; `?as=tutor|student` picks the side for users having both roles.
func (api *sessionApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	role := ctx.QueryParam("as")
	switch {
	case role == user.RoleTutor || role == user.RoleStudent:
		if !usr.HasRole(role) {
			return errHttpForbidden
		}
	case usr.IsTutor():
		role = user.RoleTutor
	default:
		role = user.RoleStudent
	}

	sessions, err := api.svc.List(ctx.Request().Context(), usr.ID, role)
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) updateStatus(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var data session.UpdateStatus
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, err = api.svc.UpdateStatus(ctx.Request().Context(), sess.ID, usr, data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) pay(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}

	pmt, err := api.paymentSvc.PaySession(ctx.Request().Context(), usr, sess.ID)
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) || errors.Is(err, session.ErrNotFound) {
			return err
		}
		return errPaymentIntent(err)
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *sessionApi) rendezvous(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	if !sess.HasParticipant(usr.ID) { // admins may look but not join
		return errHttpForbidden
	}
	if sess.Status == session.StatusCompleted || sess.Status == session.StatusCancelled {
		return core.NewValidationError(errors.New("this session is over"))
	}

	remoteID := sess.TutorID
	if usr.ID == sess.TutorID {
		remoteID = sess.StudentID
	}
	return ctx.JSON(http.StatusOK, RendezvousResponse{
		PeerID:       call.RendezvousKey(api.conf.SecretKey, sess.ID, usr.ID),
		RemotePeerID: call.RendezvousKey(api.conf.SecretKey, sess.ID, remoteID),
		BrokerURL:    api.conf.Peer.BrokerURL,
		Key:          api.conf.Peer.Key,
		Initiator:    usr.ID == sess.StudentID,
	})
}

// RendezvousResponse tells a participant how to join the call of a session.
// The student dials; the tutor waits for the call.
type RendezvousResponse struct {
	PeerID       string `json:"peerId"`
	RemotePeerID string `json:"remotePeerId"`
	BrokerURL    string `json:"brokerUrl"`
	Key          string `json:"key"`
	Initiator    bool   `json:"initiator"`
}
