package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/projetocrm/consultas/internal/appointment"
	"github.com/projetocrm/consultas/internal/clinicapi"
	"github.com/projetocrm/consultas/internal/config"
	"github.com/projetocrm/consultas/internal/logging"
	"github.com/projetocrm/consultas/internal/session"
	"github.com/projetocrm/consultas/internal/transport"
	"github.com/projetocrm/consultas/internal/whatsapp"
)

// errReported marks failures already shown to the user by the notifier.
var errReported = errors.New("reported")

type rootOptions struct {
	baseURL string
	token   string
}

type app struct {
	cfg    config.Config
	logger zerolog.Logger
	term   *terminal
	sess   *session.Session
	repo   *clinicapi.Repository
	svc    *appointment.Service
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "erro: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "consulta",
		Short:         "Cadastro e atualização de consultas pela API da clínica",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "api", "", "base URL da API (padrão: API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "valor do header Authorization (padrão: API_TOKEN)")

	rootCmd.AddCommand(loginCmd(opts))
	rootCmd.AddCommand(patientCmd(opts))
	rootCmd.AddCommand(practitionersCmd(opts))
	rootCmd.AddCommand(appointmentsCmd(opts))
	rootCmd.AddCommand(scheduleCmd(opts))
	rootCmd.AddCommand(updateCmd(opts))
	return rootCmd
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.APIBaseURL = opts.baseURL
	}
	if opts.token != "" {
		cfg.APIToken = opts.token
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel)
	term := &terminal{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr(), logger: logger}

	sess := session.New(cfg.APIToken, func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Sessão expirada. Faça login novamente com `consulta login`.")
	})
	if cfg.APIToken != "" && sess.Expired(time.Now()) {
		logger.Warn().Msg("API_TOKEN is expired")
	}

	client, err := transport.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, sess, logger)
	if err != nil {
		return nil, err
	}
	repo := clinicapi.NewRepository(client)

	return &app{
		cfg:    cfg,
		logger: logger,
		term:   term,
		sess:   sess,
		repo:   repo,
		svc:    appointment.NewService(repo, term, sess, logger),
	}, nil
}

func (a *app) workflow() *appointment.Workflow {
	return appointment.NewWorkflow(a.svc, appointment.WorkflowOptions{
		InitialStatus: appointment.StatusInProgress,
		Composer:      whatsapp.NewComposer(a.cfg.WhatsAppBaseURL),
		Opener:        a.term,
		Navigator:     a.term,
	})
}

// fail turns err into errReported when the notifier already showed it.
func (a *app) fail(err error) error {
	if err == nil {
		return nil
	}
	if a.term.reported() || appointment.IsForbidden(err) {
		return fmt.Errorf("%w: %w", errReported, err)
	}
	return err
}
