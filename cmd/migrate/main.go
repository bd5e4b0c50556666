package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/pkg/config"
	"github.com/noah-isme/school-portal-api/pkg/database"
	"github.com/noah-isme/school-portal-api/pkg/logger"
)

func main() {
	flag.Usage = func() {
		log.Printf("usage: migrate [up|down|status]")
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	switch command {
	case "up":
		err = database.Migrate(db.DB)
	case "down":
		err = database.MigrateDown(db.DB)
	case "status":
		err = database.MigrationStatus(db.DB)
	default:
		flag.Usage()
		logr.Fatal("unknown migrate command", zap.String("command", command))
	}
	if err != nil {
		logr.Fatal("migration command failed", zap.String("command", command), zap.Error(err))
	}
	logr.Info("migration command finished", zap.String("command", command))
}
