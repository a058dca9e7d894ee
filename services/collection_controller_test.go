package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHidesCompaniesWithoutRounds(t *testing.T) {
	fake := newFakeGateway()
	fake.fetch = staticPages(3, map[int][]models.Company{
		1: {company(1, "Alpha", 10), company(2, "Empty"), company(3, "Gamma", 30, 31)},
	})
	dashboard, _ := testDashboard(t, fake)

	require.NoError(t, dashboard.Collection.Load(context.Background(), 1))

	state := dashboard.Collection.Snapshot()
	require.Len(t, state.Items, 2)
	assert.Equal(t, "Alpha", state.Items[0].CompanyName)
	assert.Equal(t, "Gamma", state.Items[1].CompanyName)
	assert.Equal(t, 3, state.TotalCount)
	assert.Equal(t, 1, state.TotalPages)
	assert.False(t, state.FetchInFlight)

	rows := dashboard.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, int64(31), rows[2].Round.ID)
	assert.Nil(t, dashboard.PageNumbers())
}

func TestLatestLoadWinsWhenResponsesArriveOutOfOrder(t *testing.T) {
	gates := map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	started := make(chan int, 2)
	contexts := make(chan context.Context, 2)

	fake := newFakeGateway()
	pages := staticPages(12, map[int][]models.Company{
		1: {company(1, "Page One", 10)},
		2: {company(2, "Page Two", 20)},
	})
	fake.fetch = func(ctx context.Context, page int) (models.Page, error) {
		contexts <- ctx
		started <- page
		// responses are delivered when the test says so, cancelled or not
		<-gates[page]
		return pages(ctx, page)
	}
	dashboard, _ := testDashboard(t, fake)
	collection := dashboard.Collection

	first := make(chan error, 1)
	go func() { first <- collection.Load(context.Background(), 1) }()
	require.Equal(t, 1, <-started)
	firstCtx := <-contexts

	second := make(chan error, 1)
	go func() { second <- collection.Load(context.Background(), 2) }()
	require.Equal(t, 2, <-started)
	<-contexts

	assert.Error(t, firstCtx.Err(), "superseded request should be cancelled")
	assert.True(t, collection.Snapshot().FetchInFlight)

	close(gates[2])
	require.NoError(t, <-second)
	close(gates[1])
	assert.ErrorIs(t, <-first, ErrSuperseded)

	state := collection.Snapshot()
	require.Len(t, state.Items, 1)
	assert.Equal(t, "Page Two", state.Items[0].CompanyName)
	assert.Equal(t, 2, state.PageNumber)
	assert.Equal(t, 3, state.TotalPages)
	assert.False(t, state.FetchInFlight)
	assert.Equal(t, []int{1, 2, 3}, dashboard.PageNumbers())
}

func TestStaleFailureDoesNotNotify(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)

	fake := newFakeGateway()
	fake.fetch = func(ctx context.Context, page int) (models.Page, error) {
		if page == 1 {
			started <- struct{}{}
			<-gate
			return models.Page{}, shared.NewNetworkError("fetch_page", errors.New("reset"))
		}
		return models.Page{Items: []models.Company{company(2, "Two", 20)}, PageNumber: page, TotalCount: 6}, nil
	}
	dashboard, _ := testDashboard(t, fake)

	first := make(chan error, 1)
	go func() { first <- dashboard.Collection.Load(context.Background(), 1) }()
	<-started

	require.NoError(t, dashboard.Collection.Load(context.Background(), 2))
	close(gate)
	assert.ErrorIs(t, <-first, ErrSuperseded)

	assert.Empty(t, visibleText(t, dashboard.Notifications))
	assert.Equal(t, 2, dashboard.Collection.PageNumber())
}

func TestFailedLoadKeepsPreviousPage(t *testing.T) {
	fake := newFakeGateway()
	fake.fetch = staticPages(6, map[int][]models.Company{1: {company(1, "Alpha", 10)}})
	dashboard, _ := testDashboard(t, fake)

	require.NoError(t, dashboard.Collection.Load(context.Background(), 1))
	err := dashboard.Collection.Load(context.Background(), 2)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))

	state := dashboard.Collection.Snapshot()
	assert.Equal(t, 1, state.PageNumber)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "Alpha", state.Items[0].CompanyName)
	assert.Equal(t, MessageLoadFailed, visibleText(t, dashboard.Notifications))
}

func TestRefreshReloadsCurrentPage(t *testing.T) {
	var requested []int
	fake := newFakeGateway()
	pages := staticPages(7, map[int][]models.Company{1: {company(1, "A", 10)}, 2: {company(2, "B", 20)}})
	fake.fetch = func(ctx context.Context, page int) (models.Page, error) {
		requested = append(requested, page)
		return pages(ctx, page)
	}
	dashboard, _ := testDashboard(t, fake)

	require.NoError(t, dashboard.Collection.Load(context.Background(), 2))
	require.NoError(t, dashboard.Collection.Refresh(context.Background()))
	assert.Equal(t, []int{2, 2}, requested)
}

func TestStartRequiresCredential(t *testing.T) {
	fake := newFakeGateway()
	dashboard := NewDashboard(DashboardOptions{Gateway: fake, Clock: shared.NewFakeClock(testEpoch)})

	err := dashboard.Start(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, fake.count("fetch"))
}

func TestLocateRoundScansRemotePages(t *testing.T) {
	fake := newFakeGateway()
	fake.fetch = staticPages(7, map[int][]models.Company{
		1: {company(1, "A", 10)},
		2: {company(2, "B", 20, 21)},
	})
	dashboard, _ := testDashboard(t, fake)
	require.NoError(t, dashboard.Start(context.Background()))

	found, round, err := dashboard.LocateRound(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, "B", found.CompanyName)
	assert.Equal(t, int64(21), round.ID)
	assert.Equal(t, 1, dashboard.Collection.PageNumber())

	_, _, err = dashboard.LocateRound(context.Background(), 99)
	assert.True(t, shared.IsNotFound(err))
}

func TestPageNumbersWindowLongCollections(t *testing.T) {
	assert.Nil(t, pageWindow(1, 1))
	assert.Equal(t, []int{1, 2, 3}, pageWindow(0, 3))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, pageWindow(2, 40))
	assert.Equal(t, []int{16, 17, 18, 19, 20, 21, 22, 23, 24}, pageWindow(20, 40))
	assert.Equal(t, []int{32, 33, 34, 35, 36, 37, 38, 39, 40}, pageWindow(40, 40))
	assert.Len(t, pageWindow(7, math.MaxInt), MaxPageLinks)
}

func TestHugeServerCountKeepsSessionUsable(t *testing.T) {
	fake := newFakeGateway()
	fake.fetch = staticPages(math.MaxInt, map[int][]models.Company{
		1: {company(1, "Alpha", 10)},
	})
	dashboard, _ := testDashboard(t, fake)

	require.NoError(t, dashboard.Collection.Load(context.Background(), 1))

	state := dashboard.Collection.Snapshot()
	assert.Equal(t, math.MaxInt/models.PageSize+1, state.TotalPages)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, dashboard.PageNumbers())
}
