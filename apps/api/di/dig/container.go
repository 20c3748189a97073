package dig_container

import (
	"fmt"
	"io"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/dig"

	echoapi "github.com/urfu-lab/studyhub/apps/api/echo"
	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/auth"
	"github.com/urfu-lab/studyhub/core/catalog"
	"github.com/urfu-lab/studyhub/core/grade"
	"github.com/urfu-lab/studyhub/core/refresh"
	"github.com/urfu-lab/studyhub/core/schedule"
	"github.com/urfu-lab/studyhub/core/student"
	appfs "github.com/urfu-lab/studyhub/fs"
	emailsvc "github.com/urfu-lab/studyhub/services/email"
	logsvc "github.com/urfu-lab/studyhub/services/logger"
	"github.com/urfu-lab/studyhub/storage/database"
	inmemdb "github.com/urfu-lab/studyhub/storage/database/inmem"
	sqlxrepos "github.com/urfu-lab/studyhub/storage/database/sqlx"
)

type (
	Loggers struct {
		dig.Out
		API     core.Logger
		DB      core.Logger `name:"dbLogger"`
		LogFile io.Closer   `name:"logFile"`
	}

	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	Repositories struct {
		dig.Out
		Students student.Repository
		Catalog  catalog.Repository
		Grades   grade.Repository
		Schedule schedule.Repository
		Refresh  refresh.Repository
	}

	ServerParams struct {
		dig.In
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		Tokens      *auth.Manager
		RefreshSvc  *refresh.Service
		StudentSvc  *student.Service
		CatalogSvc  *catalog.Service
		GradeSvc    *grade.Service
		ScheduleSvc *schedule.Service
	}
)

func newLoggers(conf *core.Config) (Loggers, error) {
	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	zl, closer, err := logsvc.NewZerolog(logsvc.FileConfig{
		Dir:         conf.LogDir,
		FileName:    "api.log",
		MaxFileSize: conf.LogMaxFileSize,
	}, level)
	if err != nil {
		return Loggers{}, errors.Wrap(err, "opening log file")
	}

	apiLogger := logsvc.NewRollbarLogger(zl.With().Str("component", "API").Logger(), conf)
	dbLogger := logsvc.NewRollbarLogger(zl.With().Str("component", "DB").Caller().Logger(), conf)
	apiLogger.Enable(!conf.Debug)
	return Loggers{API: apiLogger, DB: dbLogger, LogFile: closer}, nil
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newSQLRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Students: sqlxrepos.NewStudentRepository(db),
		Catalog:  sqlxrepos.NewCatalogRepository(db),
		Grades:   sqlxrepos.NewGradeRepository(db),
		Schedule: sqlxrepos.NewScheduleRepository(db),
		Refresh:  sqlxrepos.NewRefreshRepository(db),
	}
}

func newInmemRepositories() Repositories {
	db := inmemdb.Open()
	return Repositories{
		Students: inmemdb.NewStudentRepository(db),
		Catalog:  inmemdb.NewCatalogRepository(db),
		Grades:   inmemdb.NewGradeRepository(db),
		Schedule: inmemdb.NewScheduleRepository(db),
		Refresh:  inmemdb.NewRefreshRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator, appfs.FS, appfs.CommonPasswords)
	return validate
}

func newTokenManager(conf *core.Config) *auth.Manager {
	return auth.NewManager(conf.SecretKey, conf.JWTExpirationDelta, conf.AppName)
}

func newRefreshService(repo refresh.Repository, conf *core.Config) *refresh.Service {
	return refresh.NewService(repo, conf.RefreshExpirationDelta)
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Address:     p.Conf.Server.Address,
		Debug:       p.Conf.Debug,
		TestMode:    p.Conf.TestMode,
		CORSOrigins: p.Conf.Server.CORSOrigins,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		Tokens:      p.Tokens,
		RefreshSvc:  p.RefreshSvc,
		StudentSvc:  p.StudentSvc,
		CatalogSvc:  p.CatalogSvc,
		GradeSvc:    p.GradeSvc,
		ScheduleSvc: p.ScheduleSvc,
	})
}

// New returns a new dependency injection dig.Container.
// With inmem set, repositories live in memory and no database is opened.
func New(inmem bool) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLoggers))
	if inmem {
		must(c.Provide(newInmemRepositories))
	} else {
		must(c.Provide(newDB))
		must(c.Provide(newSQLRepositories))
	}
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newTokenManager))
	must(c.Provide(newRefreshService))
	must(c.Provide(student.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(grade.NewService))
	must(c.Provide(schedule.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
