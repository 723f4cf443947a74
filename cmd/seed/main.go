package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/projetocrm/consultas/internal/config"
	"github.com/projetocrm/consultas/internal/db"
	"github.com/projetocrm/consultas/internal/logging"
	"github.com/projetocrm/consultas/internal/store"
)

type seedOptions struct {
	patients     int
	perSpecialty int
	seed         uint64
	timeout      time.Duration
}

func newRootCmd() *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Fill the sandbox Postgres with fake patients and practitioners",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.patients, "patients", 500, "number of fake patients")
	cmd.Flags().IntVar(&opts.perSpecialty, "medicos", 5, "practitioners per specialty")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "faker seed, 0 for random")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall deadline")
	return cmd
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Env, cfg.LogLevel)

	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	logger.Info().Int("patients", opts.patients).Int("per_specialty", opts.perSpecialty).Msg("seeding")
	if err := store.Seed(ctx, store.NewPgStore(pool), gofakeit.New(opts.seed), opts.patients, opts.perSpecialty); err != nil {
		return err
	}

	logger.Info().Msg("seed complete")
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logging.New(os.Stderr, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")).Fatal().Err(err).Msg("seed failed")
	}
}
