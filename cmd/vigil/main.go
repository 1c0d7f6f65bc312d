package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/megaeth-tools/vigil/internal/config"
	"github.com/megaeth-tools/vigil/internal/http_api"
	"github.com/megaeth-tools/vigil/internal/market"
	"github.com/megaeth-tools/vigil/internal/models"
	"github.com/megaeth-tools/vigil/internal/monitor"
	"github.com/megaeth-tools/vigil/internal/notificator"
	"github.com/megaeth-tools/vigil/internal/portal"
	"github.com/megaeth-tools/vigil/internal/repository"
	"github.com/megaeth-tools/vigil/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "vigil",
		Usage: "Vigil watches MegaETH token pairs and guards Telegram group access",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "telegram-token", Aliases: []string{"t"}, Usage: "Telegram bot token"},
			&cli.StringFlag{Name: "chain-id", Aliases: []string{"c"}, Usage: "DexScreener chain identifier"},
			&cli.StringFlag{Name: "database-path", Aliases: []string{"f"}, Usage: "SQLite database file path"},
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"H"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("telegram-token") {
		cfg.TelegramBotToken = c.String("telegram-token")
	}
	if c.IsSet("chain-id") {
		cfg.ChainID = c.String("chain-id")
	}
	if c.IsSet("database-path") {
		cfg.DatabasePath = c.String("database-path")
	}
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	var db models.Repository
	if cfg.UsePostgres() {
		db, err = repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	} else {
		db, err = repository.NewSQLiteDB(cfg.DatabasePath, log)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize market data gateway
	marketClient := market.NewDexScreenerClient(cfg.DexScreenerBaseURL, log.Named("market"))

	// Initialize Telegram bot, then the portal service that speaks through
	// it, then link them.
	tgBot, err := notificator.NewTelegramNotificator(log.Named("telegram"), cfg, db, marketClient)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %v", err)
	}
	portalService := portal.NewService(db, tgBot, log.Named("portal"), cfg)
	tgBot.AttachPortalService(portalService)

	// Initialize the alert engine
	engine := monitor.NewEngine(db, marketClient, tgBot, log.Named("monitor"), cfg)

	// Initialize API server
	apiServer := http_api.NewHTTPServer(cfg.ChainID, cfg.APIPort, cfg.Development, log.Named("api"))

	go apiServer.Start()
	go engine.Start(ctx)
	go portalService.Start(ctx)

	// Run the bot long-poll loop in the foreground until shutdown
	if err := tgBot.Start(ctx); err != nil {
		return fmt.Errorf("telegram bot stopped: %v", err)
	}

	if err := apiServer.Shutdown(); err != nil {
		log.Error("API server shutdown failed: ", err)
	}

	return nil
}
