package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/trezcool/maabara/apps/api/echo"
	"github.com/trezcool/maabara/core"
	"github.com/trezcool/maabara/core/activity"
	"github.com/trezcool/maabara/core/equipment"
	"github.com/trezcool/maabara/core/lab"
	"github.com/trezcool/maabara/core/school"
	"github.com/trezcool/maabara/core/session"
	"github.com/trezcool/maabara/core/student"
	"github.com/trezcool/maabara/core/user"
	emailsvc "github.com/trezcool/maabara/services/email"
	logsvc "github.com/trezcool/maabara/services/logger"
	reportsvc "github.com/trezcool/maabara/services/report"
	"github.com/trezcool/maabara/storage/database"
	sqlxrepos "github.com/trezcool/maabara/storage/database/sqlx"
)

const shutdownTimeout = 20 * time.Second

func main() {
	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	logger.Enable(!core.Conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(core.Conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	if err = database.Migrate(db.DB); err != nil {
		logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}

	// set up repos
	usrRepo := sqlxrepos.NewUserRepository(db)
	schRepo := sqlxrepos.NewSchoolRepository(db)
	labRepo := sqlxrepos.NewLabRepository(db)
	eqRepo := sqlxrepos.NewEquipmentRepository(db)
	sessRepo := sqlxrepos.NewSessionRepository(db)
	stRepo := sqlxrepos.NewStudentRepository(db)
	actRepo := sqlxrepos.NewActivityRepository(db)

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	usrSvc := user.NewService(usrRepo, mailSvc)
	schSvc := school.NewService(schRepo)
	labSvc := lab.NewService(labRepo)
	eqSvc := equipment.NewService(eqRepo)
	sessSvc := session.NewService(sessRepo)
	stSvc := student.NewService(stRepo)
	actSvc := activity.NewService(actRepo, logger)
	repSvc := reportsvc.NewService(schSvc, labSvc, eqSvc, sessSvc, stSvc)

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(
		&echoapi.Options{
			Address:        core.Conf.Server.Address(),
			Logger:         logger,
			SignalShutdown: func() { shutdown <- syscall.SIGTERM },
			UserSvc:        usrSvc,
			SchoolSvc:      schSvc,
			LabSvc:         labSvc,
			EquipmentSvc:   eqSvc,
			SessionSvc:     sessSvc,
			StudentSvc:     stSvc,
			ActivitySvc:    actSvc,
			ReportSvc:      repSvc,
		},
	)
	go app.Start()

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = app.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}
