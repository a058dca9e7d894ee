package services

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

// DashboardRow is one displayed round. A company with several rounds
// produces several rows, each addressed by its own round id.
type DashboardRow struct {
	CompanyID   int64               `json:"company_id"`
	CompanyName string              `json:"company_name"`
	CompanyLogo string              `json:"company_logo"`
	Round       models.IPORound     `json:"round"`
	Returns     models.RoundReturns `json:"-"`
	Deleting    bool                `json:"deleting"`
	Updating    bool                `json:"updating"`
	Editing     bool                `json:"editing"`
}

// DashboardOptions wires the dashboard to its collaborators
type DashboardOptions struct {
	Gateway      Gateway
	Store        TokenStore
	Navigator    Navigator
	Clock        shared.Clock
	DismissAfter time.Duration
}

// Dashboard composes the controllers that share one tracker and one
// notification slot
type Dashboard struct {
	Notifications *NotificationCenter
	Tracker       *OperationTracker
	Collection    *CollectionController
	Form          *DraftForm
	Edit          *EditWorkflow
	Delete        *DeleteWorkflow
	Auth          *AuthService

	gateway Gateway
	store   TokenStore
	logger  *logrus.Entry
}

// NewDashboard builds every controller around the same gateway
func NewDashboard(options DashboardOptions) *Dashboard {
	if options.Store == nil {
		options.Store = NewMemoryTokenStore(models.Credential{})
	}

	notifications := NewNotificationCenter(options.Clock, options.DismissAfter)
	tracker := NewOperationTracker()
	collection := NewCollectionController(options.Gateway, tracker, notifications)

	return &Dashboard{
		Notifications: notifications,
		Tracker:       tracker,
		Collection:    collection,
		Form:          NewDraftForm(options.Gateway, collection, tracker, notifications),
		Edit:          NewEditWorkflow(options.Gateway, collection, tracker, notifications),
		Delete:        NewDeleteWorkflow(options.Gateway, collection, tracker, notifications),
		Auth:          NewAuthService(options.Gateway, options.Store, options.Navigator, notifications),
		gateway:       options.Gateway,
		store:         options.Store,
		logger:        logrus.WithField("component", "Dashboard"),
	}
}

// Start loads the first page when a credential is present
func (d *Dashboard) Start(ctx context.Context) error {
	return d.StartAt(ctx, 1)
}

// StartAt is Start for a chosen page
func (d *Dashboard) StartAt(ctx context.Context, page int) error {
	credential, err := d.store.Load(ctx)
	if err != nil {
		return err
	}
	if credential.Empty() {
		return shared.NewAuthError("start", 0, ErrNotAuthenticated)
	}
	return d.Collection.Load(ctx, page)
}

// Rows flattens the displayed companies into one row per round
func (d *Dashboard) Rows() []DashboardRow {
	state := d.Collection.Snapshot()
	editingID, editing := d.Edit.EditingRound()

	var rows []DashboardRow
	for _, company := range state.Items {
		for _, round := range company.Rounds {
			rows = append(rows, DashboardRow{
				CompanyID:   company.ID,
				CompanyName: company.CompanyName,
				CompanyLogo: company.CompanyLogo,
				Round:       round,
				Returns:     round.Returns(),
				Deleting:    d.Tracker.IsDeleting(round.ID),
				Updating:    d.Tracker.IsUpdating(round.ID),
				Editing:     editing && editingID == round.ID,
			})
		}
	}
	return rows
}

// MaxPageLinks bounds how many page numbers PageNumbers offers at once
const MaxPageLinks = 9

// PageNumbers lists the pages to offer for navigation, nil when there is only
// one. Long collections get a window of MaxPageLinks pages around the
// displayed page.
func (d *Dashboard) PageNumbers() []int {
	state := d.Collection.Snapshot()
	return pageWindow(state.PageNumber, state.TotalPages)
}

func pageWindow(current, total int) []int {
	if total <= 1 {
		return nil
	}
	current = max(1, min(current, total))

	first := 1
	if total > MaxPageLinks {
		first = max(1, min(current-MaxPageLinks/2, total-MaxPageLinks+1))
	}
	last := min(total, first+MaxPageLinks-1)

	pages := make([]int, 0, last-first+1)
	for page := first; page <= last; page++ {
		pages = append(pages, page)
	}
	return pages
}

// LocateRound finds a round by id, first on the displayed page and then by
// scanning the remote pages in order. The displayed page is not changed.
func (d *Dashboard) LocateRound(ctx context.Context, roundID int64) (models.Company, models.IPORound, error) {
	state := d.Collection.Snapshot()
	for _, company := range state.Items {
		if round, ok := company.FindRound(roundID); ok {
			return company, round, nil
		}
	}

	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		result, err := d.gateway.FetchPage(ctx, page)
		if err != nil {
			return models.Company{}, models.IPORound{}, err
		}
		totalPages = result.TotalPages()
		for _, company := range result.Items {
			if round, ok := company.FindRound(roundID); ok {
				return company, round, nil
			}
		}
	}

	d.logger.WithField("round_id", roundID).Debug("Round not found on any page")
	return models.Company{}, models.IPORound{}, shared.NewNotFoundError("locate_round", "round")
}
