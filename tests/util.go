// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"context"
	"database/sql"
	"io/ioutil"
	"log"
	"os"
	"testing"
	"time"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/user"
	logsvc "github.com/trezcool/tutorly/services/logger"
	"github.com/trezcool/tutorly/storage/database"
	inmemdb "github.com/trezcool/tutorly/storage/database/inmem"
	mongostore "github.com/trezcool/tutorly/storage/database/mongo"
	sqlxstore "github.com/trezcool/tutorly/storage/database/sqlx"
)

// Environment variables enabling the tests against real databases.
const (
	PostgresDSNEnv = "TUTORLY_TEST_POSTGRES_DSN"
	MongoURIEnv    = "TUTORLY_TEST_MONGO_URI"
)

// NewConfig returns the configuration used by tests: quiet, in-memory and without rate limits in the way.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.Debug = false
	conf.Server.DisableReqLogs = true
	conf.Database.Engine = database.EngineInMem
	conf.Auth.RateLimit = 1000
	conf.Auth.RateBurst = 1000
	conf.Payment.Currency = "usd"
	conf.Payment.StripeSecretKey = "sk_test_123"
	conf.Payment.StripeWebhookSecret = "whsec_test"
	conf.Peer.BrokerURL = "wss://peer.test/peerjs"
	conf.Peer.Key = "peerjs"
	return conf
}

// NewLogger returns a logger writing nowhere.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
}

// Stores returns the record stores to run a test against: always in-memory,
// plus PostgreSQL and MongoDB when their environment variables are set.
// The stores are emptied and closed when the test ends.
func Stores(t *testing.T) map[string]record.Store {
	t.Helper()
	stores := map[string]record.Store{"inmem": inmemdb.NewStore()}

	if dsn := os.Getenv(PostgresDSNEnv); dsn != "" {
		db, err := sql.Open(database.EnginePostgres, dsn)
		if err != nil {
			t.Fatalf("sql.Open() failed: %v", err)
		}
		if err = database.Migrate(db); err != nil {
			t.Fatalf("database.Migrate() failed: %v", err)
		}
		if _, err = db.Exec("TRUNCATE records"); err != nil {
			t.Fatalf("truncating records failed: %v", err)
		}
		stores["postgres"] = sqlxstore.NewStore(db)
	}

	if uri := os.Getenv(MongoURIEnv); uri != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ms, err := mongostore.Open(ctx, uri, "tutorly_test")
		if err != nil {
			t.Fatalf("mongostore.Open() failed: %v", err)
		}
		if err = ms.DropCollections(ctx); err != nil {
			t.Fatalf("DropCollections() failed: %v", err)
		}
		stores["mongodb"] = ms
	}

	t.Cleanup(func() {
		for name, s := range stores {
			if err := s.Close(); err != nil {
				t.Errorf("closing %s store: %v", name, err)
			}
		}
	})
	return stores
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
) user.User {
	t.Helper()
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		Expertise: []string{},
	}
	if len(usr.Roles) == 0 {
		usr.Roles = []string{user.RoleStudent}
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateTutor creates an active tutor charging rate per hour.
func CreateTutor(t *testing.T, repo user.Repository, name, email string, rate float64) user.User {
	t.Helper()
	tutor := CreateUser(t, repo, name, email, "", []string{user.RoleTutor}, true)
	tutor.HourlyRate = rate
	tutor, err := repo.UpdateUser(context.Background(), tutor)
	if err != nil {
		t.Fatalf("createTutor() failed: %v", err)
	}
	return tutor
}
