package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/activity"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/dashboard"
	"github.com/RouahImad/Project-epg-sub000/core/ledger"
	"github.com/RouahImad/Project-epg-sub000/core/querycache"
	"github.com/RouahImad/Project-epg-sub000/core/student"
	"github.com/RouahImad/Project-epg-sub000/core/user"
)

type (
	// Deps holds what the handlers need.
	Deps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Cache          *querycache.Cache
		UserSvc        user.Service
		CatalogSvc     *catalog.Service
		StudentSvc     *student.Service
		LedgerSvc      *ledger.Service
		DashboardSvc   *dashboard.Service
		ActivitySvc    *activity.Service
		DisableReqLogs bool
	}

	Server struct {
		*Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps *Deps) *Server {
	s := &Server{
		Deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.SignalShutdown)
	s.app.Debug = s.Conf.Debug

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(jwtConfig(s.Conf))
	authed := []echo.MiddlewareFunc{jwt, activeUserMiddleware(s.Cache, s.UserSvc)}

	registerUserAPI(g, s.Deps, authed)
	registerCatalogAPI(g.Group("", authed...), s.Deps)
	registerStudentAPI(g.Group("", authed...), s.Deps)
	registerPaymentAPI(g.Group("", authed...), s.Deps)
	registerDashboardAPI(g.Group("", authed...), s.Deps)
}

// Start serves until the server is shut down; failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the process to shut the server down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the "+s.Conf.AppName+" API!")
}
