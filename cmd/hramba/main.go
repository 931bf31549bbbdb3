package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/hramba/internal/api"
	"github.com/erazemk/hramba/internal/auth"
	"github.com/erazemk/hramba/internal/capacity"
	"github.com/erazemk/hramba/internal/cloakroom"
	"github.com/erazemk/hramba/internal/config"
	"github.com/erazemk/hramba/internal/db"
	"github.com/erazemk/hramba/internal/metrics"
	"github.com/erazemk/hramba/internal/notify"
	"github.com/erazemk/hramba/internal/qrid"
	"github.com/erazemk/hramba/internal/store"
)

type flags struct {
	config string
	db     string
	addr   string
	log    string
}

func parseFlags(args []string) (*flags, error) {
	fs := flag.NewFlagSet("hramba", flag.ContinueOnError)

	f := &flags{}
	fs.StringVar(&f.config, "config", "", "")
	fs.StringVar(&f.config, "c", "", "")
	fs.StringVar(&f.db, "db", "", "")
	fs.StringVar(&f.db, "d", "", "")
	fs.StringVar(&f.addr, "addr", "", "")
	fs.StringVar(&f.addr, "a", "", "")
	fs.StringVar(&f.log, "log", "", "")
	fs.StringVar(&f.log, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: hramba [flags]

Flags:
  -c, -config <path>      YAML config file (default: none)
  -d, -db <path>          SQLite database path (default: hramba.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Settings can also be given as HRAMBA_* environment variables or in a .env
file. Flags take precedence.
`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if f.db != "" {
		cfg.DB = f.db
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.log != "" {
		cfg.Log = f.log
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		if closeLog != nil {
			closeLog()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	_, statErr := os.Stat(cfg.DB)
	created := os.IsNotExist(statErr)

	database, err := db.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.DB, "created", created)

	ctx := context.Background()

	generated, err := auth.EnsureRolePasswords(ctx, database, cfg.RolePasswords)
	if err != nil {
		return err
	}
	if len(generated) > 0 {
		printGeneratedPasswords(generated)
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		// Persisted so sessions survive restarts.
		jwtSecret, err = store.GetJWTSecret(ctx, database)
		if err != nil {
			return err
		}
	}

	perms := cfg.Permissions()

	var m *metrics.Metrics
	var observer cloakroom.Observer
	if cfg.Metrics {
		m = metrics.New()
		observer = m
	}

	gate := auth.NewGate(database, perms)
	gate.MaxAttempts = cfg.Lockout.MaxAttempts
	gate.LockoutDuration = cfg.Lockout.Duration

	router := api.NewRouter(api.Deps{
		DB:          database,
		JWTSecret:   jwtSecret,
		TokenExpiry: cfg.TokenExpiry,
		Perms:       perms,
		Cloakroom:   cloakroom.New(store.NewItemRepo(database, qrid.New()), capacity.NewPolicy(cfg.Limits()), observer),
		Gate:        gate,
		Notifier:    notify.NewService(database, notify.LogSender{}, cloakroom.ValidPhone),
		ReceiptSize: cfg.ReceiptSize,
		Metrics:     m,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.Addr, "metrics", cfg.Metrics)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-sigCtx.Done():
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}

	slog.Info("server stopped, closing database")
	return nil
}

// printGeneratedPasswords prints role passwords created on this start.
func printGeneratedPasswords(passwords map[string]string) {
	fmt.Println("Role passwords created:")
	for _, role := range auth.SortedRoles(passwords) {
		fmt.Printf("  %-13s %s\n", role, passwords[role])
	}
	fmt.Println()
	fmt.Println("Save these passwords, they cannot be recovered.")
	fmt.Println("A user with manage-users can reset them after logging in.")
	fmt.Println()
}
