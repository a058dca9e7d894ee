package models

import (
	"errors"
	"fmt"
	"strings"
)

// FieldKey addresses one leaf of a form. Document fields use the
// "documents." prefix and always address the round's single document pair.
type FieldKey string

const (
	FieldCompanyName        FieldKey = "company_name"
	FieldCompanyLogo        FieldKey = "company_logo"
	FieldPriceBand          FieldKey = "price_band"
	FieldOpenDate           FieldKey = "open_date"
	FieldCloseDate          FieldKey = "close_date"
	FieldIssueSize          FieldKey = "issue_size"
	FieldIssueType          FieldKey = "issue_type"
	FieldListingDate        FieldKey = "listing_date"
	FieldStatus             FieldKey = "status"
	FieldIPOPrice           FieldKey = "ipo_price"
	FieldListingPrice       FieldKey = "listing_price"
	FieldListingGain        FieldKey = "listing_gain"
	FieldCurrentMarketPrice FieldKey = "current_market_price"
	FieldCurrentReturn      FieldKey = "current_return"
	FieldRHPPDF             FieldKey = "documents.rhp_pdf"
	FieldDRHPPDF            FieldKey = "documents.drhp_pdf"
)

// InputKind tells a form renderer which control to use
type InputKind string

const (
	InputText   InputKind = "text"
	InputDate   InputKind = "date"
	InputURL    InputKind = "url"
	InputSelect InputKind = "select"
)

// FieldSpec declares one form field
type FieldSpec struct {
	Key     FieldKey
	Label   string
	Kind    InputKind
	Options []string
}

var statusOptions = []string{
	string(StatusPending), string(StatusUpcoming), string(StatusOngoing), string(StatusListed),
}

var roundFieldSpecs = []FieldSpec{
	{Key: FieldPriceBand, Label: "Price Band", Kind: InputText},
	{Key: FieldOpenDate, Label: "Open Date", Kind: InputDate},
	{Key: FieldCloseDate, Label: "Close Date", Kind: InputDate},
	{Key: FieldIssueSize, Label: "Issue Size", Kind: InputText},
	{Key: FieldIssueType, Label: "Issue Type", Kind: InputText},
	{Key: FieldListingDate, Label: "Listing Date", Kind: InputDate},
	{Key: FieldStatus, Label: "Status", Kind: InputSelect, Options: statusOptions},
	{Key: FieldIPOPrice, Label: "IPO Price", Kind: InputText},
	{Key: FieldListingPrice, Label: "Listing Price", Kind: InputText},
	{Key: FieldListingGain, Label: "Listing Gain", Kind: InputText},
	{Key: FieldCurrentMarketPrice, Label: "Current Market Price", Kind: InputText},
	{Key: FieldCurrentReturn, Label: "Current Return", Kind: InputText},
	{Key: FieldRHPPDF, Label: "RHP PDF", Kind: InputURL},
	{Key: FieldDRHPPDF, Label: "DRHP PDF", Kind: InputURL},
}

// CreateFormSchema is the ordered field list of the registration form
var CreateFormSchema = append([]FieldSpec{
	{Key: FieldCompanyName, Label: "Company Name", Kind: InputText},
	{Key: FieldCompanyLogo, Label: "Company Logo URL", Kind: InputURL},
}, roundFieldSpecs...)

// EditFormSchema is the ordered field list of the round editor
var EditFormSchema = append([]FieldSpec(nil), roundFieldSpecs...)

var (
	// ErrUnknownField is returned for keys outside the form schema
	ErrUnknownField = errors.New("unknown form field")
	// ErrInvalidFieldValue is returned when a select value is not an option
	ErrInvalidFieldValue = errors.New("invalid form field value")
)

// LookupField finds the spec of a key within a schema
func LookupField(schema []FieldSpec, key FieldKey) (FieldSpec, bool) {
	for _, spec := range schema {
		if spec.Key == key {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

var roundFieldRefs = map[FieldKey]func(*IPORound) *string{
	FieldPriceBand:          func(r *IPORound) *string { return &r.PriceBand },
	FieldOpenDate:           func(r *IPORound) *string { return &r.OpenDate },
	FieldCloseDate:          func(r *IPORound) *string { return &r.CloseDate },
	FieldIssueSize:          func(r *IPORound) *string { return &r.IssueSize },
	FieldIssueType:          func(r *IPORound) *string { return &r.IssueType },
	FieldListingDate:        func(r *IPORound) *string { return &r.ListingDate },
	FieldStatus:             func(r *IPORound) *string { return &r.Status },
	FieldIPOPrice:           func(r *IPORound) *string { return &r.IPOPrice },
	FieldListingPrice:       func(r *IPORound) *string { return &r.ListingPrice },
	FieldListingGain:        func(r *IPORound) *string { return &r.ListingGain },
	FieldCurrentMarketPrice: func(r *IPORound) *string { return &r.CurrentMarketPrice },
	FieldCurrentReturn:      func(r *IPORound) *string { return &r.CurrentReturn },
}

var documentFieldRefs = map[FieldKey]func(*DocumentLink) *string{
	FieldRHPPDF:  func(d *DocumentLink) *string { return &d.RHPPDF },
	FieldDRHPPDF: func(d *DocumentLink) *string { return &d.DRHPPDF },
}

func checkFieldValue(schema []FieldSpec, key FieldKey, value string) error {
	spec, ok := LookupField(schema, key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	if spec.Kind != InputSelect {
		return nil
	}
	// an empty select is allowed while editing; required-ness is checked on submit
	if value == "" {
		return nil
	}
	for _, option := range spec.Options {
		if strings.EqualFold(option, value) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s=%q", ErrInvalidFieldValue, key, value)
}

// DraftCompany is the create-form shape. It holds exactly one round and
// one document pair; the wire payload nests them as single-element lists.
type DraftCompany struct {
	CompanyName string       `yaml:"company_name"`
	CompanyLogo string       `yaml:"company_logo"`
	Round       DraftRound   `yaml:"round"`
	Document    DocumentLink `yaml:"documents"`
}

// DraftRound carries the round leaves of a draft
type DraftRound struct {
	PriceBand          string `yaml:"price_band"`
	OpenDate           string `yaml:"open_date"`
	CloseDate          string `yaml:"close_date"`
	IssueSize          string `yaml:"issue_size"`
	IssueType          string `yaml:"issue_type"`
	ListingDate        string `yaml:"listing_date"`
	Status             string `yaml:"status"`
	IPOPrice           string `yaml:"ipo_price"`
	ListingPrice       string `yaml:"listing_price"`
	ListingGain        string `yaml:"listing_gain"`
	CurrentMarketPrice string `yaml:"current_market_price"`
	CurrentReturn      string `yaml:"current_return"`
}

// NewDraftCompany returns the empty template: every leaf blank, status Pending
func NewDraftCompany() DraftCompany {
	return DraftCompany{Round: DraftRound{Status: string(StatusPending)}}
}

func (r DraftRound) toRound() IPORound {
	return IPORound{
		PriceBand:          r.PriceBand,
		OpenDate:           r.OpenDate,
		CloseDate:          r.CloseDate,
		IssueSize:          r.IssueSize,
		IssueType:          r.IssueType,
		ListingDate:        r.ListingDate,
		Status:             r.Status,
		IPOPrice:           r.IPOPrice,
		ListingPrice:       r.ListingPrice,
		ListingGain:        r.ListingGain,
		CurrentMarketPrice: r.CurrentMarketPrice,
		CurrentReturn:      r.CurrentReturn,
	}
}

func draftRoundFrom(round IPORound) DraftRound {
	return DraftRound{
		PriceBand:          round.PriceBand,
		OpenDate:           round.OpenDate,
		CloseDate:          round.CloseDate,
		IssueSize:          round.IssueSize,
		IssueType:          round.IssueType,
		ListingDate:        round.ListingDate,
		Status:             round.Status,
		IPOPrice:           round.IPOPrice,
		ListingPrice:       round.ListingPrice,
		ListingGain:        round.ListingGain,
		CurrentMarketPrice: round.CurrentMarketPrice,
		CurrentReturn:      round.CurrentReturn,
	}
}

// Value reads one leaf
func (d DraftCompany) Value(key FieldKey) (string, bool) {
	switch key {
	case FieldCompanyName:
		return d.CompanyName, true
	case FieldCompanyLogo:
		return d.CompanyLogo, true
	}
	if ref, ok := documentFieldRefs[key]; ok {
		document := d.Document
		return *ref(&document), true
	}
	if ref, ok := roundFieldRefs[key]; ok {
		round := d.Round.toRound()
		return *ref(&round), true
	}
	return "", false
}

// With returns a copy of the draft with one leaf replaced. The receiver is
// left untouched.
func (d DraftCompany) With(key FieldKey, value string) (DraftCompany, error) {
	if err := checkFieldValue(CreateFormSchema, key, value); err != nil {
		return d, err
	}

	switch key {
	case FieldCompanyName:
		d.CompanyName = value
		return d, nil
	case FieldCompanyLogo:
		d.CompanyLogo = value
		return d, nil
	}

	if ref, ok := documentFieldRefs[key]; ok {
		*ref(&d.Document) = value
		return d, nil
	}

	round := d.Round.toRound()
	*roundFieldRefs[key](&round) = value
	d.Round = draftRoundFrom(round)
	return d, nil
}

// MissingFields lists the schema keys whose values are blank, in form order
func (d DraftCompany) MissingFields() []FieldKey {
	var missing []FieldKey
	for _, spec := range CreateFormSchema {
		value, _ := d.Value(spec.Key)
		if strings.TrimSpace(value) == "" {
			missing = append(missing, spec.Key)
		}
	}
	return missing
}

// Merge fills blank leaves of d from other and returns the result
func (d DraftCompany) Merge(other DraftCompany) DraftCompany {
	merged := d
	for _, spec := range CreateFormSchema {
		value, _ := other.Value(spec.Key)
		if strings.TrimSpace(value) == "" {
			continue
		}
		current, _ := merged.Value(spec.Key)
		if strings.TrimSpace(current) != "" && spec.Key != FieldStatus {
			continue
		}
		merged, _ = merged.With(spec.Key, value)
	}
	return merged
}

// ToCompany builds the nested payload posted to the create endpoint
func (d DraftCompany) ToCompany() Company {
	round := d.Round.toRound()
	round.Documents = []DocumentLink{{RHPPDF: d.Document.RHPPDF, DRHPPDF: d.Document.DRHPPDF}}
	return Company{
		CompanyName: d.CompanyName,
		CompanyLogo: d.CompanyLogo,
		Rounds:      []IPORound{round},
	}
}

// EditBuffer is the working copy of one round while it is being edited
type EditBuffer struct {
	RoundID int64
	Round   IPORound
}

// NewEditBuffer copies a round, constructing an empty document pair when
// the round has none so document fields are always addressable.
func NewEditBuffer(round IPORound) EditBuffer {
	documents := make([]DocumentLink, len(round.Documents))
	copy(documents, round.Documents)
	if len(documents) == 0 {
		documents = []DocumentLink{{}}
	}
	round.Documents = documents
	return EditBuffer{RoundID: round.ID, Round: round}
}

// Value reads one leaf of the buffer
func (b EditBuffer) Value(key FieldKey) (string, bool) {
	if ref, ok := documentFieldRefs[key]; ok {
		document := b.Round.PrimaryDocument()
		return *ref(&document), true
	}
	if ref, ok := roundFieldRefs[key]; ok {
		round := b.Round
		return *ref(&round), true
	}
	return "", false
}

// With returns a copy of the buffer with one leaf replaced. Document edits
// copy the documents slice so earlier buffers never observe the change.
func (b EditBuffer) With(key FieldKey, value string) (EditBuffer, error) {
	if err := checkFieldValue(EditFormSchema, key, value); err != nil {
		return b, err
	}

	if ref, ok := documentFieldRefs[key]; ok {
		documents := make([]DocumentLink, len(b.Round.Documents))
		copy(documents, b.Round.Documents)
		if len(documents) == 0 {
			documents = []DocumentLink{{}}
		}
		*ref(&documents[0]) = value
		b.Round.Documents = documents
		return b, nil
	}

	*roundFieldRefs[key](&b.Round) = value
	return b, nil
}
