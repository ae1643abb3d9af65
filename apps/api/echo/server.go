package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/activity"
	"github.com/trezcool/maabara/core/equipment"
	"github.com/trezcool/maabara/core/lab"
	"github.com/trezcool/maabara/core/school"
	"github.com/trezcool/maabara/core/session"
	"github.com/trezcool/maabara/core/student"
	"github.com/trezcool/maabara/core/user"
	reportsvc "github.com/trezcool/maabara/services/report"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Logger         core.Logger
		SignalShutdown func()

		UserSvc      user.Service
		SchoolSvc    school.Service
		LabSvc       lab.Service
		EquipmentSvc equipment.Service
		SessionSvc   session.Service
		StudentSvc   student.Service
		ActivitySvc  activity.Service
		ReportSvc    reportsvc.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.SignalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.opts.UserSvc)
	registerSchoolAPI(v1, jwt, s.opts.SchoolSvc, s.opts.ActivitySvc)
	registerLabAPI(v1, jwt, s.opts.LabSvc, s.opts.ActivitySvc)
	registerEquipmentAPI(v1, jwt, s.opts.EquipmentSvc, s.opts.ActivitySvc)
	registerSessionAPI(v1, jwt, s.opts.SessionSvc, s.opts.ActivitySvc)
	registerStudentAPI(v1, jwt, s.opts.StudentSvc, s.opts.ActivitySvc)
	registerReportAPI(v1, jwt, s.opts.ReportSvc)
	registerActivityAPI(v1, jwt, s.opts.ActivitySvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Maabara API!")
}
