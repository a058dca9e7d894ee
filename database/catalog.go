package database

import (
	"context"
	"errors"
	"sync"

	"github.com/fenilmodi00/ipo-admin/models"
)

// ErrNotFound is returned when a round id does not exist
var ErrNotFound = errors.New("record not found")

// Catalog stores companies with their rounds and documents. Rounds are
// addressed by their own id; companies are only created and listed.
type Catalog interface {
	ListCompanies(ctx context.Context, offset, limit int) ([]models.Company, int, error)
	CreateCompany(ctx context.Context, company models.Company) (models.Company, error)
	GetRound(ctx context.Context, roundID int64) (models.IPORound, error)
	UpdateRound(ctx context.Context, roundID int64, round models.IPORound) (models.IPORound, error)
	DeleteRound(ctx context.Context, roundID int64) error
}

// MemoryCatalog is a Catalog held in process memory. Deleting a company's
// last round leaves the company in place with no rounds.
type MemoryCatalog struct {
	mutex          sync.RWMutex
	companies      []models.Company
	nextCompanyID  int64
	nextRoundID    int64
	nextDocumentID int64
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{nextCompanyID: 1, nextRoundID: 1, nextDocumentID: 1}
}

func (c *MemoryCatalog) ListCompanies(ctx context.Context, offset, limit int) ([]models.Company, int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	total := len(c.companies)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []models.Company{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := make([]models.Company, 0, end-offset)
	for _, company := range c.companies[offset:end] {
		page = append(page, cloneCompany(company))
	}
	return page, total, nil
}

func (c *MemoryCatalog) CreateCompany(ctx context.Context, company models.Company) (models.Company, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	created := cloneCompany(company)
	created.ID = c.nextCompanyID
	c.nextCompanyID++
	for i := range created.Rounds {
		created.Rounds[i].ID = c.nextRoundID
		c.nextRoundID++
		c.assignDocumentIDs(created.Rounds[i].Documents)
	}

	c.companies = append(c.companies, created)
	return cloneCompany(created), nil
}

func (c *MemoryCatalog) GetRound(ctx context.Context, roundID int64) (models.IPORound, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	companyIndex, roundIndex, ok := c.locate(roundID)
	if !ok {
		return models.IPORound{}, ErrNotFound
	}
	return cloneRound(c.companies[companyIndex].Rounds[roundIndex]), nil
}

func (c *MemoryCatalog) UpdateRound(ctx context.Context, roundID int64, round models.IPORound) (models.IPORound, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	companyIndex, roundIndex, ok := c.locate(roundID)
	if !ok {
		return models.IPORound{}, ErrNotFound
	}

	updated := cloneRound(round)
	updated.ID = roundID
	c.assignDocumentIDs(updated.Documents)
	c.companies[companyIndex].Rounds[roundIndex] = updated
	return cloneRound(updated), nil
}

func (c *MemoryCatalog) DeleteRound(ctx context.Context, roundID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	companyIndex, roundIndex, ok := c.locate(roundID)
	if !ok {
		return ErrNotFound
	}
	rounds := c.companies[companyIndex].Rounds
	c.companies[companyIndex].Rounds = append(rounds[:roundIndex:roundIndex], rounds[roundIndex+1:]...)
	return nil
}

// Len returns the number of companies
func (c *MemoryCatalog) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.companies)
}

func (c *MemoryCatalog) locate(roundID int64) (int, int, bool) {
	for i, company := range c.companies {
		for j, round := range company.Rounds {
			if round.ID == roundID {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

func (c *MemoryCatalog) assignDocumentIDs(documents []models.DocumentLink) {
	for i := range documents {
		if documents[i].ID == 0 {
			documents[i].ID = c.nextDocumentID
			c.nextDocumentID++
		}
	}
}

func cloneCompany(company models.Company) models.Company {
	rounds := make([]models.IPORound, len(company.Rounds))
	for i, round := range company.Rounds {
		rounds[i] = cloneRound(round)
	}
	company.Rounds = rounds
	return company
}

func cloneRound(round models.IPORound) models.IPORound {
	round.Documents = append([]models.DocumentLink{}, round.Documents...)
	return round
}
