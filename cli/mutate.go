package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// maxConcurrentDeletes bounds the fan-out of a multi-id delete
const maxConcurrentDeletes = 4

type fieldAssignment struct {
	Key   models.FieldKey
	Value string
}

// parseAssignments turns key=value flags into ordered field assignments
func parseAssignments(raw []string, schema []models.FieldSpec) ([]fieldAssignment, error) {
	assignments := make([]fieldAssignment, 0, len(raw))
	for _, entry := range raw {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --field %q: expected key=value", entry))
		}
		fieldKey := models.FieldKey(strings.TrimSpace(key))
		if _, known := models.LookupField(schema, fieldKey); !known {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown field %q (known: %s)", key, fieldNames(schema)))
		}
		assignments = append(assignments, fieldAssignment{Key: fieldKey, Value: value})
	}
	return assignments, nil
}

func fieldNames(schema []models.FieldSpec) string {
	names := make([]string, len(schema))
	for i, spec := range schema {
		names[i] = string(spec.Key)
	}
	return strings.Join(names, ", ")
}

func parseRoundID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid round id %q", arg))
	}
	return id, nil
}

func loadDraftFile(path string) (models.DraftCompany, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.DraftCompany{}, WrapExitError(ExitCommandError, "cannot read draft file", err)
	}
	var draft models.DraftCompany
	if err := yaml.Unmarshal(content, &draft); err != nil {
		return models.DraftCompany{}, WrapExitError(ExitCommandError, "cannot parse draft file", err)
	}
	return draft, nil
}

// draftAssignments lists the non-blank fields of draft in form order
func draftAssignments(draft models.DraftCompany) []fieldAssignment {
	var assignments []fieldAssignment
	for _, spec := range models.CreateFormSchema {
		if value, _ := draft.Value(spec.Key); strings.TrimSpace(value) != "" {
			assignments = append(assignments, fieldAssignment{Key: spec.Key, Value: value})
		}
	}
	return assignments
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		companyName string
		fields      []string
		fromFile    string
		importURL   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a company with one IPO round",
		Long: `Register a company together with one IPO round and its document links.
Every field is required. Values come from, in increasing priority:
  --import-url   an IPO detail page to prefill from
  --from-file    a YAML draft
  --field        key=value assignments (repeatable)

Field keys: ` + fieldNames(models.CreateFormSchema) + `

Examples:
  ipoadmin create --from-file draft.yaml
  ipoadmin create --import-url https://example.com/ipo/acme --field status=Upcoming`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			assignments, err := parseAssignments(fields, models.CreateFormSchema)
			if err != nil {
				return err
			}
			if companyName != "" {
				assignments = append([]fieldAssignment{{Key: models.FieldCompanyName, Value: companyName}}, assignments...)
			}

			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			defer s.logMetrics(rootOpts)

			if err := s.dashboard.Start(cmd.Context()); err != nil {
				return formatter.Fail(err, currentNotification(s.dashboard))
			}

			form := s.dashboard.Form
			form.Open()
			if importURL != "" {
				importer := services.NewDraftImporter(rootOpts.Config.GetHTTPTimeout())
				if rootOpts.Transport != nil {
					importer.WithTransport(rootOpts.Transport)
				}
				draft, err := importer.Import(cmd.Context(), importURL)
				if err != nil {
					return formatter.Fail(err, nil)
				}
				formatter.VerboseLog("imported draft for %q from %s", draft.CompanyName, importURL)
				if err := form.Prefill(draft); err != nil {
					return formatter.Fail(err, nil)
				}
			}
			if fromFile != "" {
				draft, err := loadDraftFile(fromFile)
				if err != nil {
					return err
				}
				assignments = append(draftAssignments(draft), assignments...)
			}
			for _, assignment := range assignments {
				if err := form.Update(assignment.Key, assignment.Value); err != nil {
					return WrapExitError(ExitCommandError, "invalid field value", err)
				}
			}

			submitted := form.Draft()
			if err := form.Submit(cmd.Context()); err != nil {
				return formatter.Fail(err, currentNotification(s.dashboard))
			}

			view := pageView(s.dashboard)
			return formatter.Success(RenderPage(view), map[string]interface{}{
				"company": submitted.ToCompany(),
				"page":    view,
			}, currentNotification(s.dashboard))
		},
	}

	cmd.Flags().StringVar(&companyName, "company-name", "", "company name")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "field assignment key=value (repeatable)")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "YAML draft to read fields from")
	cmd.Flags().StringVar(&importURL, "import-url", "", "IPO detail page to prefill fields from")
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "update ROUND_ID",
		Short: "Edit fields of one IPO round",
		Long: `Edit one IPO round. Fields not named keep their current values.

Field keys: ` + fieldNames(models.EditFormSchema) + `

Example:
  ipoadmin update 12 --field status=Listed --field listing_price=412`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			roundID, err := parseRoundID(args[0])
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return NewExitError(ExitCommandError, "at least one --field is required")
			}
			assignments, err := parseAssignments(fields, models.EditFormSchema)
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			defer s.logMetrics(rootOpts)

			if err := s.dashboard.Start(cmd.Context()); err != nil {
				return formatter.Fail(err, currentNotification(s.dashboard))
			}

			company, round, err := s.dashboard.LocateRound(cmd.Context(), roundID)
			if err != nil {
				return formatter.Fail(err, nil)
			}
			formatter.VerboseLog("editing round %d of %q", round.ID, company.CompanyName)

			edit := s.dashboard.Edit
			if err := edit.BeginEdit(round); err != nil {
				return formatter.Fail(err, nil)
			}
			for _, assignment := range assignments {
				if err := edit.EditField(assignment.Key, assignment.Value); err != nil {
					return WrapExitError(ExitCommandError, "invalid field value", err)
				}
			}
			_, buffer := edit.State()

			if err := edit.Save(cmd.Context()); err != nil {
				return formatter.Fail(err, currentNotification(s.dashboard))
			}

			view := pageView(s.dashboard)
			return formatter.Success(RenderPage(view), map[string]interface{}{
				"round": buffer.Round,
				"page":  view,
			}, currentNotification(s.dashboard))
		},
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "field assignment key=value (repeatable)")
	return cmd
}

// DeleteResult reports the outcome for one round id
type DeleteResult struct {
	RoundID int64  `json:"round_id"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ROUND_ID...",
		Short: "Delete IPO rounds",
		Long: `Delete one or more IPO rounds. Deletes run concurrently; a failure for
one id does not stop the others.

Example:
  ipoadmin delete 12 13`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			ids := make([]int64, 0, len(args))
			seen := make(map[int64]bool, len(args))
			for _, arg := range args {
				id, err := parseRoundID(arg)
				if err != nil {
					return err
				}
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}

			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			defer s.logMetrics(rootOpts)

			if err := s.dashboard.Start(cmd.Context()); err != nil {
				return formatter.Fail(err, currentNotification(s.dashboard))
			}

			var (
				mutex   sync.Mutex
				results = make([]DeleteResult, 0, len(ids))
				group   errgroup.Group
			)
			group.SetLimit(maxConcurrentDeletes)
			for _, id := range ids {
				group.Go(func() error {
					err := s.dashboard.Delete.Delete(cmd.Context(), id)
					result := DeleteResult{RoundID: id, Deleted: err == nil}
					if err != nil {
						result.Error = err.Error()
					}
					mutex.Lock()
					results = append(results, result)
					mutex.Unlock()
					return err
				})
			}
			firstErr := group.Wait()

			sort.Slice(results, func(i, j int) bool { return results[i].RoundID < results[j].RoundID })

			if firstErr != nil {
				failed := make([]string, 0, len(results))
				for _, result := range results {
					if !result.Deleted {
						failed = append(failed, strconv.FormatInt(result.RoundID, 10))
					}
				}
				notification := &services.Notification{Text: services.MessageDeleteFailed, Kind: services.NotificationError}
				if len(ids) > 1 {
					notification.Text = fmt.Sprintf("%s: %s", services.MessageDeleteFailed, strings.Join(failed, ", "))
				}
				return formatter.Fail(firstErr, notification)
			}

			view := pageView(s.dashboard)
			return formatter.Success(RenderPage(view), map[string]interface{}{
				"results": results,
				"page":    view,
			}, currentNotification(s.dashboard))
		},
	}
	return cmd
}
