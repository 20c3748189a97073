package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/storage/database"
	sqlxrepos "github.com/urfu-lab/studyhub/storage/database/sqlx"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Str("component", "ADMIN").Logger()
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening database")
	}

	// start CLI
	cli := commandLine{
		db:          db.DB,
		studentRepo: sqlxrepos.NewStudentRepository(db),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error().Err(err).Msg("command failed")
		}
		os.Exit(1)
	}
}
