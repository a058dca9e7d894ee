package services

import (
	"context"
	"testing"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedDashboard(t *testing.T, fake *fakeGateway) *Dashboard {
	t.Helper()
	if fake.fetch == nil {
		fake.fetch = staticPages(2, map[int][]models.Company{1: {company(1, "A", 10), company(2, "B", 20)}})
	}
	dashboard, _ := testDashboard(t, fake)
	require.NoError(t, dashboard.Start(context.Background()))
	return dashboard
}

func roundOf(t *testing.T, dashboard *Dashboard, roundID int64) models.IPORound {
	t.Helper()
	_, round, err := dashboard.LocateRound(context.Background(), roundID)
	require.NoError(t, err)
	return round
}

func TestCancelEditMakesNoNetworkCall(t *testing.T) {
	fake := newFakeGateway()
	dashboard := startedDashboard(t, fake)
	callsBefore := fake.count("fetch")
	edit := dashboard.Edit

	require.NoError(t, edit.BeginEdit(roundOf(t, dashboard, 10)))
	require.NoError(t, edit.EditField(models.FieldStatus, "listed"))
	require.NoError(t, edit.EditField(models.FieldRHPPDF, "https://example.com/new.pdf"))
	require.NoError(t, edit.Cancel())

	state, _ := edit.State()
	assert.Equal(t, EditIdle, state)
	assert.Zero(t, fake.count("update"))
	assert.Equal(t, callsBefore, fake.count("fetch"))

	// the displayed round is untouched
	assert.Equal(t, string(models.StatusUpcoming), roundOf(t, dashboard, 10).Status)
	assert.Equal(t, "https://example.com/rhp.pdf", roundOf(t, dashboard, 10).Documents[0].RHPPDF)
}

func TestSaveSendsBufferAndRefreshes(t *testing.T) {
	fake := newFakeGateway()
	dashboard := startedDashboard(t, fake)
	edit := dashboard.Edit

	require.NoError(t, edit.BeginEdit(roundOf(t, dashboard, 20)))
	require.NoError(t, edit.EditField(models.FieldListingPrice, "140"))
	editingID, editing := edit.EditingRound()
	assert.True(t, editing)
	assert.Equal(t, int64(20), editingID)
	fetchesBefore := fake.count("fetch")

	require.NoError(t, edit.Save(context.Background()))

	require.Len(t, fake.updated, 1)
	assert.Equal(t, int64(20), fake.updated[0].RoundID)
	assert.Equal(t, "140", fake.updated[0].Round.ListingPrice)
	assert.Equal(t, "₹100", fake.updated[0].Round.PriceBand)
	assert.Equal(t, fetchesBefore+1, fake.count("fetch"))

	state, _ := edit.State()
	assert.Equal(t, EditIdle, state)
	assert.False(t, dashboard.Tracker.IsUpdating(20))
	assert.Equal(t, MessageUpdateSucceeded, visibleText(t, dashboard.Notifications))
}

func TestSaveFailureReturnsToEditingWithBuffer(t *testing.T) {
	fake := newFakeGateway()
	fake.update = func(ctx context.Context, roundID int64, buffer models.EditBuffer) (models.IPORound, error) {
		return models.IPORound{}, shared.NewNotFoundError("update_round", "round")
	}
	dashboard := startedDashboard(t, fake)
	edit := dashboard.Edit

	require.NoError(t, edit.BeginEdit(roundOf(t, dashboard, 10)))
	require.NoError(t, edit.EditField(models.FieldIssueSize, "₹900 Cr"))

	err := edit.Save(context.Background())
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))

	state, buffer := edit.State()
	assert.Equal(t, EditEditing, state)
	assert.Equal(t, "₹900 Cr", buffer.Round.IssueSize)
	assert.False(t, dashboard.Tracker.IsUpdating(10))
	assert.Equal(t, MessageUpdateFailed, visibleText(t, dashboard.Notifications))
}

func TestEditStateTransitionsAreGuarded(t *testing.T) {
	fake := newFakeGateway()
	dashboard := startedDashboard(t, fake)
	edit := dashboard.Edit

	assert.ErrorIs(t, edit.Save(context.Background()), ErrNoEditSession)
	assert.ErrorIs(t, edit.Cancel(), ErrNoEditSession)
	assert.ErrorIs(t, edit.EditField(models.FieldStatus, "listed"), ErrNoEditSession)

	require.NoError(t, edit.BeginEdit(roundOf(t, dashboard, 10)))
	assert.ErrorIs(t, edit.BeginEdit(roundOf(t, dashboard, 20)), ErrEditInProgress)
	assert.ErrorIs(t, edit.EditField(models.FieldCompanyName, "x"), models.ErrUnknownField)

	rows := dashboard.Rows()
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Editing)
	assert.False(t, rows[1].Editing)
}

func TestSecondSaveWhileSavingIsRejected(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)

	fake := newFakeGateway()
	fake.update = func(ctx context.Context, roundID int64, buffer models.EditBuffer) (models.IPORound, error) {
		started <- struct{}{}
		<-gate
		return buffer.Round, nil
	}
	dashboard := startedDashboard(t, fake)
	edit := dashboard.Edit
	require.NoError(t, edit.BeginEdit(roundOf(t, dashboard, 10)))

	first := make(chan error, 1)
	go func() { first <- edit.Save(context.Background()) }()
	<-started

	state, _ := edit.State()
	assert.Equal(t, EditSaving, state)
	assert.True(t, dashboard.Tracker.IsUpdating(10))
	assert.ErrorIs(t, edit.Save(context.Background()), ErrOperationInFlight)
	assert.ErrorIs(t, edit.Cancel(), ErrOperationInFlight)
	assert.ErrorIs(t, edit.EditField(models.FieldStatus, "listed"), ErrOperationInFlight)

	close(gate)
	require.NoError(t, <-first)
	assert.Equal(t, 1, fake.count("update"))
}
