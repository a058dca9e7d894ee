package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
)

// fakeGateway records calls and lets a test script each operation
type fakeGateway struct {
	mutex sync.Mutex
	calls map[string]int

	login  func(ctx context.Context, username, password string) (models.Credential, error)
	signup func(ctx context.Context, request models.SignupRequest) error
	logout func(ctx context.Context, refresh string) error
	fetch  func(ctx context.Context, page int) (models.Page, error)
	create func(ctx context.Context, draft models.DraftCompany) (models.Company, error)
	update func(ctx context.Context, roundID int64, buffer models.EditBuffer) (models.IPORound, error)
	remove func(ctx context.Context, roundID int64) error

	created []models.DraftCompany
	updated []models.EditBuffer
	deleted []int64
	logouts []string
}

var testEpoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: make(map[string]int)}
}

func (g *fakeGateway) record(operation string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.calls[operation]++
}

func (g *fakeGateway) count(operation string) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.calls[operation]
}

func (g *fakeGateway) Login(ctx context.Context, username, password string) (models.Credential, error) {
	g.record("login")
	if g.login != nil {
		return g.login(ctx, username, password)
	}
	return models.Credential{Access: "access-" + username, Refresh: "refresh-" + username, Username: username}, nil
}

func (g *fakeGateway) Signup(ctx context.Context, request models.SignupRequest) error {
	g.record("signup")
	if g.signup != nil {
		return g.signup(ctx, request)
	}
	return nil
}

func (g *fakeGateway) Logout(ctx context.Context, refresh string) error {
	g.record("logout")
	g.mutex.Lock()
	g.logouts = append(g.logouts, refresh)
	g.mutex.Unlock()
	if g.logout != nil {
		return g.logout(ctx, refresh)
	}
	return nil
}

func (g *fakeGateway) FetchPage(ctx context.Context, page int) (models.Page, error) {
	g.record("fetch")
	if g.fetch != nil {
		return g.fetch(ctx, page)
	}
	return models.Page{PageNumber: page}, nil
}

func (g *fakeGateway) CreateCompany(ctx context.Context, draft models.DraftCompany) (models.Company, error) {
	g.record("create")
	g.mutex.Lock()
	g.created = append(g.created, draft)
	g.mutex.Unlock()
	if g.create != nil {
		return g.create(ctx, draft)
	}
	return draft.ToCompany(), nil
}

func (g *fakeGateway) UpdateRound(ctx context.Context, roundID int64, buffer models.EditBuffer) (models.IPORound, error) {
	g.record("update")
	g.mutex.Lock()
	g.updated = append(g.updated, buffer)
	g.mutex.Unlock()
	if g.update != nil {
		return g.update(ctx, roundID, buffer)
	}
	return buffer.Round, nil
}

func (g *fakeGateway) DeleteRound(ctx context.Context, roundID int64) error {
	g.record("delete")
	g.mutex.Lock()
	g.deleted = append(g.deleted, roundID)
	g.mutex.Unlock()
	if g.remove != nil {
		return g.remove(ctx, roundID)
	}
	return nil
}

// staticPages serves fixed pages of companies
func staticPages(totalCount int, pages map[int][]models.Company) func(context.Context, int) (models.Page, error) {
	return func(ctx context.Context, page int) (models.Page, error) {
		items, ok := pages[page]
		if !ok {
			return models.Page{}, shared.NewNotFoundError("fetch_page", "page")
		}
		return models.Page{Items: items, PageNumber: page, PageSize: models.PageSize, TotalCount: totalCount}, nil
	}
}

func company(id int64, name string, roundIDs ...int64) models.Company {
	c := models.Company{ID: id, CompanyName: name}
	for _, roundID := range roundIDs {
		c.Rounds = append(c.Rounds, models.IPORound{
			ID:        roundID,
			PriceBand: "₹100",
			Status:    string(models.StatusUpcoming),
			Documents: []models.DocumentLink{{ID: roundID, RHPPDF: "https://example.com/rhp.pdf"}},
		})
	}
	return c
}

// testDashboard wires a dashboard to fake with a fake clock
func testDashboard(t *testing.T, fake *fakeGateway) (*Dashboard, *shared.FakeClock) {
	t.Helper()
	clock := shared.NewFakeClock(testEpoch)
	dashboard := NewDashboard(DashboardOptions{
		Gateway:      fake,
		Store:        NewMemoryTokenStore(models.Credential{Access: "token", Refresh: "refresh", Username: "admin"}),
		Clock:        clock,
		DismissAfter: 4000 * time.Millisecond,
	})
	return dashboard, clock
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func visibleText(t *testing.T, notifications *NotificationCenter) string {
	t.Helper()
	notification, visible := notifications.Current()
	if !visible {
		return ""
	}
	return notification.Text
}
