package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/auth"
	"github.com/sakif/choirhub/internal/config"
	"github.com/sakif/choirhub/internal/logging"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository/sqlite"
	"github.com/sakif/choirhub/internal/server"
)

// The demo member lets a fresh install be logged into right away.
const (
	demoCode  = "11916339"
	demoName  = "Demo Member"
	demoEmail = "demo@choirhub.local"
	demoLevel = "senior"
)

// app carries what every command shares: the loaded configuration and the
// logger built from it.
type app struct {
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
	closer  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "choirhub",
		Short:         "Choir hub serves songs and their scores and recordings to choir members.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional file of KEY=value settings")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and print the schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.migrate(cmd.Context(), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Create the demo member",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.seed(cmd.Context(), cmd.OutOrStdout())
			},
		},
		newAdminTokenCmd(a),
	)

	return root
}

func newAdminTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Print a signed token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AdminJWTSecret == "" {
				return errors.New("ADMIN_JWT_SECRET is not set")
			}
			tokens, err := auth.NewAdminTokens(a.cfg.AdminJWTSecret)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "who the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultAdminTTL, "how long the token stays valid")
	return cmd
}

// setup loads configuration and builds the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger, a.closer = logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	return nil
}

func (a *app) teardown() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *app) serve(ctx context.Context) error {
	srv, err := server.New(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}

// openDB opens the configured database, creating its directory on first use.
// Opening runs any pending migrations.
func (a *app) openDB() (*sqlite.DB, error) {
	if a.cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return sqlite.New(a.cfg.DBPath)
}

func (a *app) migrate(ctx context.Context, out io.Writer) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "database %s at schema version %d\n", a.cfg.DBPath, version)
	return nil
}

func (a *app) seed(ctx context.Context, out io.Writer) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Choirs().Create(ctx, &model.Choir{
		Name:  demoName,
		Email: demoEmail,
		Level: demoLevel,
		Code:  demoCode,
	})
	switch {
	case errors.Is(err, apperror.ErrConflict):
		fmt.Fprintln(out, "demo member already exists")
		return nil
	case err != nil:
		return fmt.Errorf("creating demo member: %w", err)
	}

	a.logger.Info("demo member created", slog.String("code", demoCode))
	fmt.Fprintf(out, "demo member created; log in with code %s\n", demoCode)
	return nil
}
