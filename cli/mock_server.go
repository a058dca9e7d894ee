package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/fenilmodi00/ipo-admin/handlers"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewMockServerCommand creates the mock-server command.
func NewMockServerCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		port        string
		seedDemo    bool
		username    string
		password    string
		catalogURL  string
		logRequests bool
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local IPO API for development",
		Long: `Serve the IPO API endpoints (signup, login, logout and the paginated
IPO catalog) from memory, or from postgres with --catalog-database-url.

Example:
  ipoadmin mock-server --port 8000 --user admin --password admin-pass
  ipoadmin --api-url http://127.0.0.1:8000 login -u admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			catalog, closeCatalog, err := openCatalog(ctx, rootOpts, catalogURL)
			if err != nil {
				return err
			}
			defer closeCatalog()

			users := handlers.NewUserRegistry()
			var companies = handlers.DemoCompanies
			if !seedDemo {
				companies = nil
			}
			if err := handlers.Seed(ctx, catalog, users, username, password, companies); err != nil {
				var seedErr *handlers.SeedError
				if errors.As(err, &seedErr) {
					return NewExitError(ExitCommandError, fmt.Sprintf("seed account rejected: %v", seedErr.Fields))
				}
				return WrapExitError(ExitFailure, "cannot seed catalog", err)
			}

			app := handlers.NewApp(handlers.AppOptions{
				Catalog:        catalog,
				Users:          users,
				RequestLogging: logRequests,
			})

			address := ":" + port
			logrus.WithFields(logrus.Fields{
				"component": "mock-server",
				"address":   address,
				"seeded":    len(companies),
			}).Info("Starting reference IPO API")

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.Listen(address)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return WrapExitError(ExitFailure, "server stopped", err)
				}
				return nil
			case <-ctx.Done():
			}

			logrus.Info("Shutting down reference IPO API")
			if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
				return WrapExitError(ExitFailure, "shutdown failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", defaultString(rootOpts.Config.MockServerPort, "8000"), "listen port")
	cmd.Flags().BoolVar(&seedDemo, "seed-demo", true, "load demo companies at startup")
	cmd.Flags().StringVar(&username, "user", "", "register this account at startup")
	cmd.Flags().StringVar(&password, "password", "", "password of the startup account")
	cmd.Flags().StringVar(&catalogURL, "catalog-database-url", "", "serve the catalog from this postgres database")
	cmd.Flags().BoolVar(&logRequests, "log-requests", true, "print one line per request")
	return cmd
}

func openCatalog(ctx context.Context, rootOpts *RootOptions, dbURL string) (database.Catalog, func(), error) {
	if dbURL == "" {
		return database.NewMemoryCatalog(), func() {}, nil
	}

	dbConfig := rootOpts.Config.Unified().Database
	if err := database.ConnectWithConfig(dbURL, &dbConfig); err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "cannot open catalog database", err)
	}
	if err := database.Migrate(ctx, database.DB); err != nil {
		database.Close()
		return nil, nil, WrapExitError(ExitCommandError, "cannot migrate catalog database", err)
	}
	if err := database.HealthCheck(ctx, database.DB); err != nil {
		database.Close()
		return nil, nil, WrapExitError(ExitCommandError, "catalog database is unhealthy", err)
	}
	return database.NewPostgresCatalog(database.DB), database.Close, nil
}
