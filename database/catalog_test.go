package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCompany(name string, statuses ...models.RoundStatus) models.Company {
	company := models.Company{CompanyName: name, CompanyLogo: "https://example.com/" + name + ".png"}
	for _, status := range statuses {
		company.Rounds = append(company.Rounds, models.IPORound{
			PriceBand: "₹100-110",
			Status:    string(status),
			Documents: []models.DocumentLink{{RHPPDF: "https://example.com/rhp.pdf"}},
		})
	}
	return company
}

func TestMemoryCatalogAssignsIDs(t *testing.T) {
	ctx := context.Background()
	catalog := NewMemoryCatalog()

	first, err := catalog.CreateCompany(ctx, sampleCompany("alpha", models.StatusListed, models.StatusUpcoming))
	require.NoError(t, err)
	second, err := catalog.CreateCompany(ctx, sampleCompany("beta", models.StatusPending))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, int64(1), first.Rounds[0].ID)
	assert.Equal(t, int64(2), first.Rounds[1].ID)
	assert.Equal(t, int64(3), second.Rounds[0].ID)
	assert.NotZero(t, second.Rounds[0].Documents[0].ID)
	assert.Equal(t, 2, catalog.Len())
}

func TestMemoryCatalogPagination(t *testing.T) {
	ctx := context.Background()
	catalog := NewMemoryCatalog()
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		_, err := catalog.CreateCompany(ctx, sampleCompany(name, models.StatusListed))
		require.NoError(t, err)
	}

	page, total, err := catalog.ListCompanies(ctx, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page, 2)
	assert.Equal(t, "f", page[0].CompanyName)

	page, total, err = catalog.ListCompanies(ctx, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}

func TestMemoryCatalogRoundOperations(t *testing.T) {
	ctx := context.Background()
	catalog := NewMemoryCatalog()
	created, err := catalog.CreateCompany(ctx, sampleCompany("alpha", models.StatusUpcoming))
	require.NoError(t, err)
	roundID := created.Rounds[0].ID

	replacement := created.Rounds[0]
	replacement.Status = string(models.StatusOngoing)
	replacement.Documents = []models.DocumentLink{{RHPPDF: "https://example.com/new-rhp.pdf"}}
	updated, err := catalog.UpdateRound(ctx, roundID, replacement)
	require.NoError(t, err)
	assert.Equal(t, roundID, updated.ID)
	assert.Equal(t, "https://example.com/new-rhp.pdf", updated.Documents[0].RHPPDF)

	fetched, err := catalog.GetRound(ctx, roundID)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusOngoing), fetched.Status)

	require.NoError(t, catalog.DeleteRound(ctx, roundID))
	assert.ErrorIs(t, catalog.DeleteRound(ctx, roundID), ErrNotFound)
	_, err = catalog.GetRound(ctx, roundID)
	assert.True(t, IsNotFound(err))
	_, err = catalog.UpdateRound(ctx, roundID, replacement)
	assert.True(t, IsNotFound(err))

	companies, total, err := catalog.ListCompanies(ctx, 0, models.PageSize)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, companies[0].Rounds)
}

func TestMemoryCatalogReturnsCopies(t *testing.T) {
	ctx := context.Background()
	catalog := NewMemoryCatalog()
	created, err := catalog.CreateCompany(ctx, sampleCompany("alpha", models.StatusListed))
	require.NoError(t, err)

	created.Rounds[0].Status = "mutated"
	created.Rounds[0].Documents[0].RHPPDF = "mutated"

	companies, _, err := catalog.ListCompanies(ctx, 0, models.PageSize)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusListed), companies[0].Rounds[0].Status)
	assert.Equal(t, "https://example.com/rhp.pdf", companies[0].Rounds[0].Documents[0].RHPPDF)
}

func TestParseSQLStatements(t *testing.T) {
	statements := parseSQLStatements(`
-- comment
CREATE TABLE a (
    id INT
);

CREATE INDEX b ON a (id);
SELECT 1`)

	assert.Equal(t, []string{
		"CREATE TABLE a ( id INT )",
		"CREATE INDEX b ON a (id)",
		"SELECT 1",
	}, statements)
	assert.NotEmpty(t, parseSQLStatements(schemaSQL))
}

func TestOpenRequiresURL(t *testing.T) {
	config := shared.NewDefaultUnifiedConfiguration().Database
	_, err := Open("", &config)
	require.Error(t, err)
	category, ok := shared.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, shared.ErrorCategoryConfiguration, category)
}

// openTestDatabase connects to TEST_DATABASE_URL and applies the schema,
// skipping when no database is reachable
func openTestDatabase(t *testing.T) *sql.DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	config := shared.NewDefaultUnifiedConfiguration().Database
	db, err := Open(dbURL, &config)
	if err != nil {
		t.Skipf("database not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	missing, err := ValidateSchema(ctx, db)
	require.NoError(t, err)
	require.Empty(t, missing)
	return db
}

func TestPostgresCatalog(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	catalog := NewPostgresCatalog(db)

	created, err := catalog.CreateCompany(ctx, sampleCompany("pg-"+uuid.NewString(), models.StatusUpcoming))
	require.NoError(t, err)
	require.Len(t, created.Rounds, 1)
	roundID := created.Rounds[0].ID
	assert.NotZero(t, created.ID)
	assert.NotZero(t, created.Rounds[0].Documents[0].ID)

	replacement := created.Rounds[0]
	replacement.Status = string(models.StatusListed)
	replacement.IPOPrice = "110"
	_, err = catalog.UpdateRound(ctx, roundID, replacement)
	require.NoError(t, err)

	fetched, err := catalog.GetRound(ctx, roundID)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusListed), fetched.Status)
	assert.Equal(t, "110", fetched.IPOPrice)
	require.Len(t, fetched.Documents, 1)

	_, total, err := catalog.ListCompanies(ctx, 0, models.PageSize)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 1)

	require.NoError(t, catalog.DeleteRound(ctx, roundID))
	assert.True(t, IsNotFound(catalog.DeleteRound(ctx, roundID)))
}

func TestPostgresTokenStore(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	store := NewPostgresTokenStore(db, "test-"+uuid.NewString())
	t.Cleanup(func() { store.Clear(ctx) })

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	issued := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, models.Credential{Access: "a1", Refresh: "r1", Username: "admin", IssuedAt: issued}))
	require.NoError(t, store.Save(ctx, models.Credential{Access: "a2", Refresh: "r2", Username: "admin", IssuedAt: issued}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", loaded.Access)
	assert.Equal(t, "r2", loaded.Refresh)
	assert.True(t, issued.Equal(loaded.IssuedAt))

	require.NoError(t, store.Clear(ctx))
	cleared, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, cleared.Empty())
}
