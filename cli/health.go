package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fenilmodi00/ipo-admin/config"
	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/spf13/cobra"
)

// HealthCheck is the outcome of one probe
type HealthCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// HealthReport summarises all probes
type HealthReport struct {
	Checks []HealthCheck `json:"checks"`
	Passed int           `json:"passed"`
	Total  int           `json:"total"`
	Status string        `json:"status"`
}

func (r *HealthReport) add(name string, err error, detail string) {
	check := HealthCheck{Name: name, OK: err == nil, Detail: detail}
	if err != nil {
		check.Detail = err.Error()
	} else {
		r.Passed++
	}
	r.Checks = append(r.Checks, check)
	r.Total++
}

func (r *HealthReport) finish() {
	switch {
	case r.Passed == r.Total:
		r.Status = "healthy"
	case r.Passed >= r.Total/2:
		r.Status = "degraded"
	default:
		r.Status = "unhealthy"
	}
}

func (r HealthReport) render() string {
	var out strings.Builder
	for _, check := range r.Checks {
		mark := successStyle.Render("OK")
		if !check.OK {
			mark = errorStyle.Render("FAILED")
		}
		fmt.Fprintf(&out, "%-12s %s %s\n", check.Name+":", mark, mutedStyle.Render(check.Detail))
	}
	fmt.Fprintf(&out, "%s: %d/%d checks passed", strings.ToUpper(r.Status), r.Passed, r.Total)
	return out.String()
}

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the API, the stored credential and the credential database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			ctx := cmd.Context()

			s, err := openSession(ctx, rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			report := &HealthReport{}
			report.add("api", s.client.Health(ctx), rootOpts.APIURL)

			credential, err := s.store.Load(ctx)
			if err == nil && credential.Empty() {
				err = fmt.Errorf("not logged in")
			}
			report.add("credential", err, credential.Username)

			if err == nil {
				page, fetchErr := s.client.FetchPage(ctx, 1)
				report.add("catalog", fetchErr, fmt.Sprintf("%d companies", page.TotalCount))
			}

			if rootOpts.TokenStore == config.TokenStorePostgres {
				report.add("database", checkCredentialDatabase(ctx, rootOpts), "schema complete")
			}

			report.finish()
			if err := formatter.Success(report.render(), report, nil); err != nil {
				return err
			}
			if report.Status == "unhealthy" {
				return &ExitError{Code: ExitFailure, Message: "system unhealthy", Reported: true}
			}
			return nil
		},
	}
}

func checkCredentialDatabase(ctx context.Context, rootOpts *RootOptions) error {
	dbConfig := rootOpts.Config.Unified().Database
	db, err := database.Open(rootOpts.DatabaseURL, &dbConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.HealthCheck(ctx, db); err != nil {
		return err
	}
	missing, err := database.ValidateSchema(ctx, db)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}
