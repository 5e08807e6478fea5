package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	logsvc "github.com/RouahImad/Project-epg-sub000/services/logger"
	"github.com/RouahImad/Project-epg-sub000/storage/database"
	sqlxrepos "github.com/RouahImad/Project-epg-sub000/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		db:       db,
		validate: newValidate(),
		usrRepo:  sqlxrepos.NewUserRepository(db),
		catSvc:   catalog.NewService(sqlxrepos.NewCatalogRepository(db)),
	}
	err = cli.run(context.Background(), os.Stdout, os.Args[1:])
	_ = db.Close()
	if err != nil {
		logger.Error("admin: "+err.Error(), err)
		os.Exit(1)
	}
}

func newValidate() *validator.Validate {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}
