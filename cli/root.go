package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fenilmodi00/ipo-admin/config"
	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose      bool
	Format       string // "json" | "text"
	APIURL       string
	TokenStore   string // "file" | "memory" | "postgres"
	TokenFile    string
	TokenProfile string
	DatabaseURL  string

	Config *config.Config

	// Transport and Clock replace the network and wall clock in tests
	Transport http.RoundTripper
	Clock     shared.Clock
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command with defaults taken from cfg.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{Config: cfg})
}

// NewRootCommandWithOptions creates the root command around opts. Unset
// flag defaults come from opts.Config.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	if opts.Config == nil {
		opts.Config = &config.Config{}
	}
	cfg := opts.Config

	cmd := &cobra.Command{
		Use:   "ipoadmin",
		Short: "ipoadmin - IPO catalog administration",
		Long: `Administer a catalog of company IPO records through the IPO API.

Log in once, then list, register, edit and delete IPO rounds. Every
change is followed by a refresh of the listed page so what you see is
what the server holds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Verbose {
				config.ConfigureLogging("debug", cfg.LogFormat)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", defaultString(cfg.APIBaseURL, shared.DefaultBaseURL), "IPO API base URL")
	cmd.PersistentFlags().StringVar(&opts.TokenStore, "token-store", defaultString(cfg.TokenStore, config.TokenStoreFile), "credential store (file|memory|postgres)")
	cmd.PersistentFlags().StringVar(&opts.TokenFile, "token-file", cfg.TokenFile, "credential file for the file store")
	cmd.PersistentFlags().StringVar(&opts.TokenProfile, "profile", defaultString(cfg.TokenProfile, "default"), "credential profile for the postgres store")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", cfg.DatabaseURL, "postgres URL for the postgres store")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewSignupCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewHealthCommand(opts))
	cmd.AddCommand(NewMockServerCommand(opts))

	return cmd
}

// Execute runs the command line and returns the process exit code
func Execute(cfg *config.Config) int {
	opts := &RootOptions{Config: cfg}
	return Run(NewRootCommandWithOptions(opts), opts)
}

// Run executes cmd, reports any error not yet shown and maps it to an exit code
func Run(cmd *cobra.Command, opts *RootOptions) int {
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = "text"
	}
	formatter := &OutputFormatter{
		Format:    format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	formatter.Report(err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	// cobra's own errors are usage problems: unknown commands, bad flags
	if _, categorised := shared.CategoryOf(err); !categorised {
		return ExitCommandError
	}
	_, code := classify(err)
	return code
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// session is everything a command needs to talk to the API
type session struct {
	client    *services.APIClient
	store     services.TokenStore
	dashboard *services.Dashboard
	closers   []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// logMetrics prints the API call summary in verbose mode
func (s *session) logMetrics(opts *RootOptions) {
	if opts.Verbose {
		s.client.Metrics().LogSummary()
		s.client.HTTPMetrics().LogHTTPSummary()
	}
}

// openSession wires the token store, API client and dashboard
func openSession(ctx context.Context, opts *RootOptions, navigator services.Navigator) (*session, error) {
	s := &session{}

	store, closeStore, err := openTokenStore(opts)
	if err != nil {
		return nil, err
	}
	s.store = store
	if closeStore != nil {
		s.closers = append(s.closers, closeStore)
	}

	unified := opts.Config.Unified()
	unified.Service.BaseURL = strings.TrimRight(opts.APIURL, "/")
	unified.ValidateAndApplyDefaults()

	factory := shared.NewHTTPClientFactory(unified.Service.HTTPRequestTimeout)
	if opts.Transport != nil {
		factory.WithTransport(opts.Transport)
	}
	s.closers = append(s.closers, factory.CleanupAllClients)

	s.client = services.NewAPIClient(unified, store, factory)
	s.dashboard = services.NewDashboard(services.DashboardOptions{
		Gateway:      s.client,
		Store:        store,
		Navigator:    navigator,
		Clock:        opts.Clock,
		DismissAfter: unified.Notification.DismissAfter,
	})

	logrus.WithFields(logrus.Fields{
		"component":   "cli",
		"api_url":     unified.Service.BaseURL,
		"token_store": opts.TokenStore,
	}).Debug("Session opened")

	return s, nil
}

func openTokenStore(opts *RootOptions) (services.TokenStore, func(), error) {
	switch opts.TokenStore {
	case config.TokenStoreMemory:
		return services.NewMemoryTokenStore(models.Credential{}), nil, nil
	case config.TokenStoreFile, "":
		if opts.TokenFile == "" {
			return nil, nil, NewExitError(ExitCommandError, "no credential file configured (set --token-file or IPO_TOKEN_FILE)")
		}
		return services.NewFileTokenStore(opts.TokenFile), nil, nil
	case config.TokenStorePostgres:
		dbConfig := opts.Config.Unified().Database
		db, err := database.Open(opts.DatabaseURL, &dbConfig)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "cannot open postgres credential store", err)
		}
		if missing, err := database.ValidateSchema(context.Background(), db); err == nil && len(missing) > 0 {
			if err := database.Migrate(context.Background(), db); err != nil {
				db.Close()
				return nil, nil, WrapExitError(ExitCommandError, "cannot migrate postgres credential store", err)
			}
		}
		return database.NewPostgresTokenStore(db, opts.TokenProfile), func() { db.Close() }, nil
	default:
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown token store %q", opts.TokenStore))
	}
}

// currentNotification returns the visible message as a pointer for output
func currentNotification(dashboard *services.Dashboard) *services.Notification {
	notification, visible := dashboard.Notifications.Current()
	if !visible {
		return nil
	}
	return &notification
}
