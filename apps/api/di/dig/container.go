package dig_container

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/tutorly/apps/api/echo"
	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/auth"
	"github.com/trezcool/tutorly/core/dashboard"
	"github.com/trezcool/tutorly/core/document"
	"github.com/trezcool/tutorly/core/payment"
	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/review"
	"github.com/trezcool/tutorly/core/session"
	"github.com/trezcool/tutorly/core/user"
	blobsvc "github.com/trezcool/tutorly/services/blob"
	emailsvc "github.com/trezcool/tutorly/services/email"
	logsvc "github.com/trezcool/tutorly/services/logger"
	paymentsvc "github.com/trezcool/tutorly/services/payment"
	"github.com/trezcool/tutorly/storage/database"
	"github.com/trezcool/tutorly/storage/database/records"
)

const (
	storageLocal    = "local"
	storageSupabase = "supabase"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	BlobStoreResult struct {
		dig.Out
		Store      core.BlobStore
		UploadsDir string `name:"uploadsDir"`
	}

	ServerParams struct {
		dig.In
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		AuthClient  *auth.Client
		UserSvc     user.Service
		SessionSvc  session.Service
		DocumentSvc document.Service
		ReviewSvc   review.Service
		Dashboard   *dashboard.Service
		Payments    *payment.Service
		UploadsDir  string `name:"uploadsDir"`
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) record.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := database.OpenStore(ctx, conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s database: %v", conf.Database.Engine, err), err)
	}
	return store
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags), logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newBlobStore(conf *core.Config, logger core.Logger) BlobStoreResult {
	switch conf.Storage.Backend {
	case storageSupabase:
		return BlobStoreResult{Store: blobsvc.NewSupabaseStore(conf, &http.Client{Timeout: time.Minute})}
	case storageLocal, "":
		local, err := blobsvc.NewLocalStore(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up local storage: %v", err), err)
		}
		return BlobStoreResult{Store: local, UploadsDir: local.Dir()}
	}
	logger.Fatal(fmt.Sprintf("unknown storage backend %q", conf.Storage.Backend))
	return BlobStoreResult{}
}

func newPaymentProcessor(conf *core.Config) payment.Processor {
	return paymentsvc.NewStripeProcessor(conf, nil /* default backends */)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		AuthClient:   p.AuthClient,
		UserSvc:      p.UserSvc,
		SessionSvc:   p.SessionSvc,
		DocumentSvc:  p.DocumentSvc,
		ReviewSvc:    p.ReviewSvc,
		DashboardSvc: p.Dashboard,
		PaymentSvc:   p.Payments,
		UploadsDir:   p.UploadsDir,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(records.NewRepository, dig.As(
		new(user.Repository),
		new(session.Repository),
		new(document.Repository),
		new(review.Repository),
	)))
	must(c.Provide(newEmailService))
	must(c.Provide(newBlobStore))
	must(c.Provide(newPaymentProcessor))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	must(c.Provide(user.NewService))
	must(c.Provide(session.NewService))
	must(c.Provide(document.NewService))
	must(c.Provide(review.NewService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(payment.NewService))
	must(c.Provide(auth.NewLocalProvider, dig.As(new(auth.Provider))))
	must(c.Provide(auth.NewClient))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
