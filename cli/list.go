package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/spf13/cobra"
)

// PageView is the JSON shape of one listed page
type PageView struct {
	Page       int                     `json:"page"`
	TotalPages int                     `json:"total_pages"`
	TotalCount int                     `json:"total_count"`
	Rows       []services.DashboardRow `json:"rows"`
	Pages      []int                   `json:"pages,omitempty"`
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func pageView(dashboard *services.Dashboard) PageView {
	state := dashboard.Collection.Snapshot()
	return PageView{
		Page:       state.PageNumber,
		TotalPages: state.TotalPages,
		TotalCount: state.TotalCount,
		Rows:       dashboard.Rows(),
		Pages:      dashboard.PageNumbers(),
	}
}

// RenderPage draws the rows as a table followed by the page navigation line
func RenderPage(view PageView) string {
	if len(view.Rows) == 0 {
		return mutedStyle.Render("No IPOs on this page")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("ROUND", "COMPANY", "PRICE BAND", "OPEN", "CLOSE", "ISSUE SIZE", "TYPE", "LISTING", "STATUS", "IPO PRICE", "LISTING GAIN", "CURRENT RETURN", "")

	for _, row := range view.Rows {
		round := row.Round
		t.Row(
			strconv.FormatInt(round.ID, 10),
			row.CompanyName,
			round.PriceBand,
			round.OpenDate,
			round.CloseDate,
			round.IssueSize,
			round.IssueType,
			round.ListingDate,
			round.Status,
			round.IPOPrice,
			models.FormatPercent(row.Returns.ListingGain),
			models.FormatPercent(row.Returns.CurrentReturn),
			rowMarker(row),
		)
	}

	var out strings.Builder
	out.WriteString(t.Render())
	out.WriteString("\n")
	out.WriteString(pageLine(view))
	return out.String()
}

func rowMarker(row services.DashboardRow) string {
	switch {
	case row.Deleting:
		return "deleting"
	case row.Updating:
		return "saving"
	case row.Editing:
		return "editing"
	}
	return ""
}

func pageLine(view PageView) string {
	if len(view.Pages) == 0 {
		return mutedStyle.Render(fmt.Sprintf("%d IPOs", view.TotalCount))
	}
	labels := make([]string, len(view.Pages))
	for i, page := range view.Pages {
		if page == view.Page {
			labels[i] = "[" + strconv.Itoa(page) + "]"
			continue
		}
		labels[i] = strconv.Itoa(page)
	}
	return mutedStyle.Render(fmt.Sprintf("page %s of %d (%d IPOs)", strings.Join(labels, " "), view.TotalPages, view.TotalCount))
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List IPO rounds page by page",
		Long: `List one page of the IPO catalog. Companies without rounds are hidden;
a company with several rounds appears once per round.

Examples:
  ipoadmin list
  ipoadmin list --page 2 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			if page < 1 {
				return NewExitError(ExitCommandError, "--page must be 1 or greater")
			}

			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			defer s.logMetrics(rootOpts)

			if err := s.dashboard.StartAt(cmd.Context(), page); err != nil {
				return formatter.Fail(err, currentNotification(s.dashboard))
			}

			view := pageView(s.dashboard)
			return formatter.Success(RenderPage(view), view, nil)
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	return cmd
}
