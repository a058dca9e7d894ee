package models

import (
	"strings"
)

// RoundStatus is the lifecycle state of an IPO round
type RoundStatus string

const (
	StatusPending  RoundStatus = "Pending"
	StatusUpcoming RoundStatus = "Upcoming"
	StatusOngoing  RoundStatus = "Ongoing"
	StatusListed   RoundStatus = "Listed"
)

// AllRoundStatuses lists the statuses in display order
var AllRoundStatuses = []RoundStatus{StatusPending, StatusUpcoming, StatusOngoing, StatusListed}

// ParseRoundStatus matches a status case-insensitively. The edit form of the
// web dashboard submits lowercase values, the create form submits "Pending".
func ParseRoundStatus(text string) (RoundStatus, bool) {
	trimmed := strings.TrimSpace(text)
	for _, status := range AllRoundStatuses {
		if strings.EqualFold(trimmed, string(status)) {
			return status, true
		}
	}
	return "", false
}

// DocumentLink holds the prospectus URLs attached to a round
type DocumentLink struct {
	ID      int64  `json:"id,omitempty" yaml:"id,omitempty"`
	RHPPDF  string `json:"rhp_pdf" yaml:"rhp_pdf"`
	DRHPPDF string `json:"drhp_pdf" yaml:"drhp_pdf"`
}

// IPORound is one offering of a company. Leaf values travel as strings
// because the admin forms edit them as text.
type IPORound struct {
	ID                 int64          `json:"id,omitempty"`
	PriceBand          string         `json:"price_band"`
	OpenDate           string         `json:"open_date"`
	CloseDate          string         `json:"close_date"`
	IssueSize          string         `json:"issue_size"`
	IssueType          string         `json:"issue_type"`
	ListingDate        string         `json:"listing_date"`
	Status             string         `json:"status"`
	IPOPrice           string         `json:"ipo_price"`
	ListingPrice       string         `json:"listing_price"`
	ListingGain        string         `json:"listing_gain"`
	CurrentMarketPrice string         `json:"current_market_price"`
	CurrentReturn      string         `json:"current_return"`
	Documents          []DocumentLink `json:"documents"`
}

// PrimaryDocument returns the first document pair, or an empty one
func (r IPORound) PrimaryDocument() DocumentLink {
	if len(r.Documents) == 0 {
		return DocumentLink{}
	}
	return r.Documents[0]
}

// Company is a catalog entry. The API nests rounds under the "ipos" key.
type Company struct {
	ID          int64      `json:"id,omitempty"`
	CompanyName string     `json:"company_name"`
	CompanyLogo string     `json:"company_logo"`
	Rounds      []IPORound `json:"ipos"`
}

// HasRounds reports whether the company has anything to display
func (c Company) HasRounds() bool {
	return len(c.Rounds) > 0
}

// ActiveRound returns the first round, which is the one the dashboard
// summarises for a company.
func (c Company) ActiveRound() (IPORound, bool) {
	if len(c.Rounds) == 0 {
		return IPORound{}, false
	}
	return c.Rounds[0], true
}

// FindRound looks a round up by id
func (c Company) FindRound(roundID int64) (IPORound, bool) {
	for _, round := range c.Rounds {
		if round.ID == roundID {
			return round, true
		}
	}
	return IPORound{}, false
}

// FilterDisplayable drops companies without rounds, preserving order
func FilterDisplayable(companies []Company) []Company {
	filtered := make([]Company, 0, len(companies))
	for _, company := range companies {
		if company.HasRounds() {
			filtered = append(filtered, company)
		}
	}
	return filtered
}
