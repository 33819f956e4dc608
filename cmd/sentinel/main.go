// Sentinel Core - access control and resource inventory service.
//
// Usage:
//
//	sentinel [--config path] [serve]
//	sentinel [--config path] migrate [--down | --status]
//	sentinel [--config path] seed
//	sentinel --version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nerrad567/sentinel-core/internal/accesslog"
	"github.com/nerrad567/sentinel-core/internal/api"
	"github.com/nerrad567/sentinel-core/internal/auth"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/config"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/database"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/logging"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/metrics"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/sentinel-core/internal/resource"
	_ "github.com/nerrad567/sentinel-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor SENTINEL_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// errUsage marks command-line mistakes; main exits 2 for these.
var errUsage = errors.New("usage error")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// options holds parsed command-line flags.
type options struct {
	configPath  string
	showVersion bool
	migrateDown bool
	migrateInfo bool
	command     string
}

func parseArgs(args []string, out io.Writer) (*options, error) {
	opts := &options{}

	fs := pflag.NewFlagSet("sentinel", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVarP(&opts.configPath, "config", "c", configPathFromEnv(), "path to the YAML configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	fs.BoolVar(&opts.migrateDown, "down", false, "migrate: roll back the most recent migration")
	fs.BoolVar(&opts.migrateInfo, "status", false, "migrate: list applied and pending migrations")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
		opts.command = "serve"
	case 1:
		opts.command = rest[0]
	default:
		return nil, fmt.Errorf("%w: unexpected arguments %v", errUsage, rest[1:])
	}

	switch opts.command {
	case "serve", "migrate", "seed":
	default:
		return nil, fmt.Errorf("%w: unknown command %q", errUsage, opts.command)
	}
	if opts.migrateDown && opts.migrateInfo {
		return nil, fmt.Errorf("%w: --down and --status are mutually exclusive", errUsage)
	}
	return opts, nil
}

// configPathFromEnv returns SENTINEL_CONFIG, or the default path when that
// file exists, or "" to run on defaults and environment variables alone.
func configPathFromEnv() string {
	if path := os.Getenv("SENTINEL_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// run is the application entry point, separated from main for testability.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseArgs(args, stdout)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "sentinel %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting Sentinel Core",
		"command", opts.command,
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	switch opts.command {
	case "migrate":
		return runMigrate(ctx, db, opts, stdout)
	case "seed":
		return runSeed(ctx, db, log, stdout)
	default:
		return serve(ctx, cfg, db, log, stdout)
	}
}

func openDatabase(cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.DSN,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "driver", db.Driver(), "path", db.Path())
	return db, nil
}

func runMigrate(ctx context.Context, db *database.DB, opts *options, stdout io.Writer) error {
	switch {
	case opts.migrateDown:
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		fmt.Fprintln(stdout, "rolled back one migration")
	case opts.migrateInfo:
		applied, pending, err := db.GetMigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		for _, m := range applied {
			fmt.Fprintf(stdout, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		for _, m := range pending {
			fmt.Fprintf(stdout, "pending  %s  %s\n", m.Version, m.Name)
		}
	default:
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Fprintln(stdout, "migrations complete")
	}
	return nil
}

func runSeed(ctx context.Context, db *database.DB, log *logging.Logger, stdout io.Writer) error {
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	created, err := auth.SeedDefaults(ctx, auth.NewUserRepository(db), log.Logger)
	if err != nil {
		return fmt.Errorf("seeding accounts: %w", err)
	}
	if len(created) == 0 {
		fmt.Fprintln(stdout, "default accounts already exist; nothing seeded")
		return nil
	}
	for _, acct := range created {
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", acct.Username, acct.Role, acct.Password)
	}
	return nil
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger, stdout io.Writer) error {
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	users := auth.NewUserRepository(db)
	password, err := auth.SeedAdmin(ctx, users, log.Logger)
	if err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	if password != "" {
		// Same line format as the seed command; the log level may hide the WARN.
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", auth.DefaultAccounts[0].Username, auth.DefaultAccounts[0].Role, password)
	}

	secret := []byte(cfg.Security.JWT.Secret)
	issuer, err := auth.NewIssuer(secret, cfg.GetTokenTTL())
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}
	verifier, err := auth.NewVerifier(secret, users)
	if err != nil {
		return fmt.Errorf("creating token verifier: %w", err)
	}
	authn, err := auth.NewAuthenticator(users, issuer)
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	mqttClient := connectMQTT(cfg, log)
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient := connectInflux(cfg, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	srv, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		Logger:        log,
		DB:            db,
		Users:         users,
		Resources:     resource.NewRepository(db),
		AccessLogs:    accesslog.NewRepository(db),
		Authenticator: authn,
		Guard:         auth.NewGuard(verifier),
		Metrics:       metrics.New(version, commit),
		MQTT:          mqttClient,
		Influx:        influxClient,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// connectMQTT returns nil when MQTT is disabled or the broker is unreachable.
// Events are then only delivered over WebSocket.
func connectMQTT(cfg *config.Config, log *logging.Logger) *mqtt.Client {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil
	}

	client, err := mqtt.Connect(cfg.MQTT,
		mqtt.WithLogger(log),
		mqtt.WithConnectionHandler(func(up bool, err error) {
			if up {
				log.Info("MQTT link up")
				return
			}
			log.Warn("MQTT disconnected", "error", err)
		}),
	)
	if err != nil {
		log.Warn("MQTT unavailable, continuing without it", "error", err)
		return nil
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client
}

// connectInflux returns nil when InfluxDB is disabled or unreachable.
func connectInflux(cfg *config.Config, log *logging.Logger) *influxdb.Client {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB, influxdb.OnWriteError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	}))
	if err != nil {
		log.Warn("InfluxDB unavailable, continuing without it", "error", err)
		return nil
	}
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client
}
