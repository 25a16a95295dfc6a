// Package cli implements the triage command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/credentials"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/trackerclient"
	"github.com/spec-kit/ticket-triage/internal/triage"
)

// Backend is everything the commands need from the tracker API.
type Backend interface {
	triage.Tracker
	triage.Authenticator
	Logout() error
	Me(ctx context.Context) (dto.UserResponse, error)
	ListProjects(ctx context.Context) ([]dto.ProjectResponse, error)
}

// BackendFactory builds a Backend from the loaded client configuration.
type BackendFactory func(cfg *config.ClientConfig, logger *zap.Logger) (Backend, error)

// Env holds the process-level collaborators so commands can run in tests.
type Env struct {
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	Getenv     func(string) string
	NewBackend BackendFactory
}

// DefaultEnv wires the real terminal and HTTP backend.
func DefaultEnv() Env {
	return Env{
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		Getenv:     os.Getenv,
		NewBackend: HTTPBackend,
	}
}

// HTTPBackend is the production BackendFactory.
func HTTPBackend(cfg *config.ClientConfig, logger *zap.Logger) (Backend, error) {
	return trackerclient.New(cfg.APIURL, credentials.NewFileStore(cfg.CredentialsFile),
		trackerclient.WithTimeout(cfg.Timeout()),
		trackerclient.WithRetry(trackerclient.RetryConfig{MaxAttempts: cfg.RetryAttempts}),
		trackerclient.WithLogger(logger),
	)
}

type app struct {
	env        Env
	configPath string
	apiURL     string
	jsonOut    bool
	verbose    bool

	cfg     *config.ClientConfig
	logger  *zap.Logger
	backend Backend
}

// NewRootCommand builds the triage command tree.
func NewRootCommand(env Env) *cobra.Command {
	a := &app{env: env}
	if a.env.Getenv == nil {
		a.env.Getenv = os.Getenv
	}

	root := &cobra.Command{
		Use:           "triage",
		Short:         "Triage tracker tickets from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to triage.yaml")
	flags.StringVar(&a.apiURL, "api-url", "", "tracker API base URL (overrides config)")
	flags.BoolVar(&a.jsonOut, "json", false, "print machine-readable JSON")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.overviewCommand(),
		a.listCommand(),
		a.showCommand(),
		a.statusCommand(),
		a.commentCommand(),
		a.projectsCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.LoadClient(a.configPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	logger, err := observability.NewConsoleLogger(level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger

	factory := a.env.NewBackend
	if factory == nil {
		factory = HTTPBackend
	}
	backend, err := factory(cfg, logger)
	if err != nil {
		return err
	}
	a.backend = backend
	return nil
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, env Env, args []string) int {
	root := NewRootCommand(env)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(env.Err, "error:", errorText(err))
		return 1
	}
	return 0
}

// errorText prefers the user-facing message for tracker failures.
func errorText(err error) string {
	var te *triage.Error
	if errors.As(err, &te) {
		if te.Kind == triage.KindPrecondition {
			return triage.UserMessage(err)
		}
		return fmt.Sprintf("%s (%v)", triage.UserMessage(err), err)
	}
	return err.Error()
}
