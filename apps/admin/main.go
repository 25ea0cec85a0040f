package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/core/user"
	emailsvc "github.com/trezcool/tutorly/services/email"
	logsvc "github.com/trezcool/tutorly/services/logger"
	"github.com/trezcool/tutorly/services/peer/peerjs"
	"github.com/trezcool/tutorly/storage/database"
	"github.com/trezcool/tutorly/storage/database/records"
	sqlxstore "github.com/trezcool/tutorly/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	cli := commandLine{
		conf:      conf,
		logger:    logger,
		validate:  validator.New(),
		connector: peerjs.NewConnector(conf, logger),
	}
	translator := core.NewTranslator()
	core.InitValidators(cli.validate, translator)
	user.InitValidators(cli.validate, translator)
	core.ParseEmailTemplates(conf, logger)

	// set up DB
	var store record.Store
	if conf.Database.Engine == database.EnginePostgres {
		errAndDie(logger, database.CreateIfNotExist(conf))
		db, err := database.Open(conf)
		errAndDie(logger, err)
		cli.db = db
		store = sqlxstore.NewStore(db) // left unmigrated for the migrate command
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		s, err := database.OpenStore(ctx, conf)
		cancel()
		errAndDie(logger, err)
		store = s
	}

	repo := records.NewRepository(store)
	cli.usrRepo = repo
	cli.usrSvc = user.NewService(repo, emailsvc.NewConsoleService(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags), logger))

	err := cli.run(os.Args)
	_ = store.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
