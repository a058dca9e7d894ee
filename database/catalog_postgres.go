package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const roundColumns = `id, company_id, price_band, open_date, close_date, issue_size, issue_type,
	listing_date, status, ipo_price, listing_price, listing_gain, current_market_price, current_return`

// PostgresCatalog is a Catalog over the companies, ipos and documents tables
type PostgresCatalog struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewPostgresCatalog creates a catalog on db. Migrate must have run.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{
		db:     db,
		logger: logrus.WithField("component", "PostgresCatalog"),
	}
}

func (c *PostgresCatalog) ListCompanies(ctx context.Context, offset, limit int) ([]models.Company, int, error) {
	var total int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count companies: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, company_name, company_logo
		FROM companies
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	companies := []models.Company{}
	index := make(map[int64]int)
	var ids []int64
	for rows.Next() {
		var company models.Company
		if err := rows.Scan(&company.ID, &company.CompanyName, &company.CompanyLogo); err != nil {
			return nil, 0, fmt.Errorf("failed to scan company: %w", err)
		}
		company.Rounds = []models.IPORound{}
		index[company.ID] = len(companies)
		ids = append(ids, company.ID)
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return companies, total, nil
	}

	rounds, err := c.queryRounds(ctx, `SELECT `+roundColumns+` FROM ipos WHERE company_id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, 0, err
	}
	for _, entry := range rounds {
		position := index[entry.companyID]
		companies[position].Rounds = append(companies[position].Rounds, entry.round)
	}

	return companies, total, nil
}

func (c *PostgresCatalog) CreateCompany(ctx context.Context, company models.Company) (models.Company, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Company{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created := company
	err = tx.QueryRowContext(ctx, `
		INSERT INTO companies (company_name, company_logo) VALUES ($1, $2) RETURNING id
	`, company.CompanyName, company.CompanyLogo).Scan(&created.ID)
	if err != nil {
		return models.Company{}, fmt.Errorf("failed to insert company: %w", err)
	}

	created.Rounds = make([]models.IPORound, 0, len(company.Rounds))
	for _, round := range company.Rounds {
		round.ID = 0
		inserted, err := insertRound(ctx, tx, created.ID, round)
		if err != nil {
			return models.Company{}, err
		}
		created.Rounds = append(created.Rounds, inserted)
	}

	if err := tx.Commit(); err != nil {
		return models.Company{}, fmt.Errorf("failed to commit company: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"company_id": created.ID,
		"rounds":     len(created.Rounds),
	}).Info("Created company")
	return created, nil
}

func (c *PostgresCatalog) GetRound(ctx context.Context, roundID int64) (models.IPORound, error) {
	rounds, err := c.queryRounds(ctx, `SELECT `+roundColumns+` FROM ipos WHERE id = $1`, roundID)
	if err != nil {
		return models.IPORound{}, err
	}
	if len(rounds) == 0 {
		return models.IPORound{}, ErrNotFound
	}
	return rounds[0].round, nil
}

func (c *PostgresCatalog) UpdateRound(ctx context.Context, roundID int64, round models.IPORound) (models.IPORound, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return models.IPORound{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE ipos SET
			price_band = $2, open_date = $3, close_date = $4, issue_size = $5, issue_type = $6,
			listing_date = $7, status = $8, ipo_price = $9, listing_price = $10, listing_gain = $11,
			current_market_price = $12, current_return = $13
		WHERE id = $1
	`, roundID, round.PriceBand, round.OpenDate, round.CloseDate, round.IssueSize, round.IssueType,
		round.ListingDate, round.Status, round.IPOPrice, round.ListingPrice, round.ListingGain,
		round.CurrentMarketPrice, round.CurrentReturn)
	if err != nil {
		return models.IPORound{}, fmt.Errorf("failed to update round: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return models.IPORound{}, ErrNotFound
	}

	// documents are replaced wholesale, like the nested serializer does
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE ipo_id = $1`, roundID); err != nil {
		return models.IPORound{}, fmt.Errorf("failed to replace documents: %w", err)
	}
	for _, document := range round.Documents {
		if _, err := insertDocument(ctx, tx, roundID, document); err != nil {
			return models.IPORound{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.IPORound{}, fmt.Errorf("failed to commit round update: %w", err)
	}
	return c.GetRound(ctx, roundID)
}

func (c *PostgresCatalog) DeleteRound(ctx context.Context, roundID int64) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM ipos WHERE id = $1`, roundID)
	if err != nil {
		return fmt.Errorf("failed to delete round: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

type roundRow struct {
	companyID int64
	round     models.IPORound
}

func (c *PostgresCatalog) queryRounds(ctx context.Context, query string, args ...interface{}) ([]roundRow, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var result []roundRow
	index := make(map[int64]int)
	var ids []int64
	for rows.Next() {
		var entry roundRow
		r := &entry.round
		if err := rows.Scan(&r.ID, &entry.companyID, &r.PriceBand, &r.OpenDate, &r.CloseDate, &r.IssueSize,
			&r.IssueType, &r.ListingDate, &r.Status, &r.IPOPrice, &r.ListingPrice, &r.ListingGain,
			&r.CurrentMarketPrice, &r.CurrentReturn); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		r.Documents = []models.DocumentLink{}
		index[r.ID] = len(result)
		ids = append(ids, r.ID)
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	documentRows, err := c.db.QueryContext(ctx, `
		SELECT id, ipo_id, rhp_pdf, drhp_pdf FROM documents WHERE ipo_id = ANY($1) ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer documentRows.Close()

	for documentRows.Next() {
		var (
			document models.DocumentLink
			roundID  int64
		)
		if err := documentRows.Scan(&document.ID, &roundID, &document.RHPPDF, &document.DRHPPDF); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		position, ok := index[roundID]
		if !ok {
			continue
		}
		result[position].round.Documents = append(result[position].round.Documents, document)
	}
	return result, documentRows.Err()
}

func insertRound(ctx context.Context, tx *sql.Tx, companyID int64, round models.IPORound) (models.IPORound, error) {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO ipos (company_id, price_band, open_date, close_date, issue_size, issue_type,
			listing_date, status, ipo_price, listing_price, listing_gain, current_market_price, current_return)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, companyID, round.PriceBand, round.OpenDate, round.CloseDate, round.IssueSize, round.IssueType,
		round.ListingDate, round.Status, round.IPOPrice, round.ListingPrice, round.ListingGain,
		round.CurrentMarketPrice, round.CurrentReturn).Scan(&round.ID)
	if err != nil {
		return models.IPORound{}, fmt.Errorf("failed to insert round: %w", err)
	}

	documents := make([]models.DocumentLink, 0, len(round.Documents))
	for _, document := range round.Documents {
		inserted, err := insertDocument(ctx, tx, round.ID, document)
		if err != nil {
			return models.IPORound{}, err
		}
		documents = append(documents, inserted)
	}
	round.Documents = documents
	return round, nil
}

func insertDocument(ctx context.Context, tx *sql.Tx, roundID int64, document models.DocumentLink) (models.DocumentLink, error) {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO documents (ipo_id, rhp_pdf, drhp_pdf) VALUES ($1, $2, $3) RETURNING id
	`, roundID, document.RHPPDF, document.DRHPPDF).Scan(&document.ID)
	if err != nil {
		return models.DocumentLink{}, fmt.Errorf("failed to insert document: %w", err)
	}
	return document, nil
}

// IsNotFound reports whether err is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
