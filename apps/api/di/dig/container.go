package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/RouahImad/Project-epg-sub000/apps/api/echo"
	"github.com/RouahImad/Project-epg-sub000/assets"
	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/dashboard"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
	"github.com/RouahImad/Project-epg-sub000/core/student"
	"github.com/RouahImad/Project-epg-sub000/core/user"
	emailsvc "github.com/RouahImad/Project-epg-sub000/services/email"
	logsvc "github.com/RouahImad/Project-epg-sub000/services/logger"
	"github.com/RouahImad/Project-epg-sub000/storage/database"
	sqlxrepos "github.com/RouahImad/Project-epg-sub000/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf         *core.Config
	Logger       core.Logger
	Validate     *validator.Validate
	Translator   ut.Translator
	Cache        *querycache.Cache
	UserSvc      user.Service
	CatalogSvc   *catalog.Service
	StudentSvc   *student.Service
	LedgerSvc    *ledger.Service
	DashboardSvc *dashboard.Service
	ActivitySvc  *activity.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// newValidate registers the custom validators and their messages, then loads the assets they read.
func newValidate(translator ut.Translator, logger core.Logger) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)
	return validate
}

func newCache(conf *core.Config, logger core.Logger) *querycache.Cache {
	return querycache.NewCache(conf.Cache.MaxAge, logger)
}

func newLedgerService(db core.DB, repo ledger.Repository, cat *catalog.Service, students *student.Service) *ledger.Service {
	return ledger.NewService(db, repo, cat, students)
}

func newDashboardService(
	l *ledger.Service,
	users user.Service,
	students *student.Service,
	cat *catalog.Service,
	act *activity.Service,
	conf *core.Config,
) *dashboard.Service {
	return dashboard.NewService(l, users, students, cat, act, conf)
}

func newServer(p serverParams) *echoapi.Server {
	core.ParseEmailTemplates(assets.EmailTemplates, assets.EmailTemplatesDir, p.Logger, !p.Conf.Debug)

	return echoapi.NewServer(&echoapi.Deps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		Cache:        p.Cache,
		UserSvc:      p.UserSvc,
		CatalogSvc:   p.CatalogSvc,
		StudentSvc:   p.StudentSvc,
		LedgerSvc:    p.LedgerSvc,
		DashboardSvc: p.DashboardSvc,
		ActivitySvc:  p.ActivitySvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(newCache))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewCatalogRepository, dig.As(new(catalog.Repository))))
	must(c.Provide(sqlxrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(sqlxrepos.NewLedgerRepository, dig.As(new(ledger.Repository))))
	must(c.Provide(sqlxrepos.NewActivityRepository, dig.As(new(activity.Repository))))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(activity.NewService))
	must(c.Provide(newLedgerService))
	must(c.Provide(newDashboardService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
