package main

import (
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/tutorly/storage/database"
)

var (
	gooseRunFunc = goose.Run // mockable

	errNoSQL = errors.New("migrations only apply to the postgres engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQL
	}
	if err := goose.SetDialect(database.EnginePostgres); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return gooseRunFunc(args[0], cli.db, database.MigrationsDir, args[1:]...)
}
