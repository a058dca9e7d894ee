package handlers

import (
	"context"

	"github.com/fenilmodi00/ipo-admin/database"
	"github.com/fenilmodi00/ipo-admin/models"
)

// DemoCompanies is sample data for a local reference server. The last
// company has no rounds and is hidden by the dashboard.
var DemoCompanies = []models.Company{
	{
		CompanyName: "Bharat Ports Ltd",
		CompanyLogo: "https://example.com/logos/bharat-ports.png",
		Rounds: []models.IPORound{{
			PriceBand: "₹95-100", OpenDate: "2025-01-10", CloseDate: "2025-01-14",
			IssueSize: "₹1,200 Cr", IssueType: "Book Built", ListingDate: "2025-01-17",
			Status: string(models.StatusListed), IPOPrice: "100", ListingPrice: "128",
			CurrentMarketPrice: "141.50",
			Documents: []models.DocumentLink{{
				RHPPDF:  "https://example.com/docs/bharat-ports-rhp.pdf",
				DRHPPDF: "https://example.com/docs/bharat-ports-drhp.pdf",
			}},
		}},
	},
	{
		CompanyName: "Nimbus Fintech Ltd",
		CompanyLogo: "https://example.com/logos/nimbus.png",
		Rounds: []models.IPORound{{
			PriceBand: "₹410-432", OpenDate: "2025-03-03", CloseDate: "2025-03-05",
			IssueSize: "₹860 Cr", IssueType: "Book Built", ListingDate: "2025-03-10",
			Status: string(models.StatusOngoing), IPOPrice: "432",
			Documents: []models.DocumentLink{{RHPPDF: "https://example.com/docs/nimbus-rhp.pdf"}},
		}},
	},
	{
		CompanyName: "Saraswati Textiles Ltd",
		CompanyLogo: "https://example.com/logos/saraswati.png",
		Rounds: []models.IPORound{{
			PriceBand: "₹52-55", OpenDate: "2025-04-21", CloseDate: "2025-04-23",
			IssueSize: "₹75 Cr", IssueType: "Fixed Price", ListingDate: "2025-04-28",
			Status: string(models.StatusUpcoming),
		}},
	},
	{
		CompanyName: "Delisted Holdings Ltd",
		CompanyLogo: "https://example.com/logos/delisted.png",
		Rounds:      []models.IPORound{},
	},
}

// Seed loads companies into catalog and registers an operator account when
// username is set
func Seed(ctx context.Context, catalog database.Catalog, users *UserRegistry, username, password string, companies []models.Company) error {
	for _, company := range companies {
		if _, err := catalog.CreateCompany(ctx, company); err != nil {
			return err
		}
	}
	if username == "" {
		return nil
	}
	if _, fields := users.Register(models.SignupRequest{Username: username, Password: password}); len(fields) > 0 {
		return &SeedError{Fields: fields}
	}
	return nil
}

// SeedError reports a rejected seed account
type SeedError struct {
	Fields map[string][]string
}

func (e *SeedError) Error() string {
	return "seed account rejected"
}
