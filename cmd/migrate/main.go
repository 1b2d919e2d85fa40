package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"saladas-service/config"
	"saladas-service/internal/migration"
	"saladas-service/internal/util"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	var migrationsPath string
	flag.StringVar(&migrationsPath, "path", cfg.Database.MigrationsPath, "path to the migrations directory")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: migrate [-path dir] up|down|version")
		os.Exit(2)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	m, err := migration.New(db, migrationsPath)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command := flag.Arg(0); command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = m.Version()
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
	default:
		logger.Fatal("Unknown command", zap.String("command", command))
	}
	if err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
}
