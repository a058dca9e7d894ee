package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// labelAliases maps the row labels used by public IPO detail pages to form
// fields. Labels are compared lowercased with trailing colons removed.
var labelAliases = []struct {
	field   models.FieldKey
	aliases []string
}{
	{models.FieldPriceBand, []string{"price band", "issue price band"}},
	{models.FieldOpenDate, []string{"open date", "ipo open date", "issue open date", "issue open", "opening date"}},
	{models.FieldCloseDate, []string{"close date", "ipo close date", "issue close date", "issue close", "closing date"}},
	{models.FieldIssueSize, []string{"issue size", "total issue size"}},
	{models.FieldIssueType, []string{"issue type", "ipo type"}},
	{models.FieldListingDate, []string{"listing date", "ipo listing date"}},
	{models.FieldStatus, []string{"status", "ipo status"}},
	{models.FieldIPOPrice, []string{"ipo price", "issue price", "final issue price"}},
	{models.FieldListingPrice, []string{"listing price", "listing day price", "open price on listing"}},
	{models.FieldListingGain, []string{"listing gain", "listing gains"}},
	{models.FieldCurrentMarketPrice, []string{"current market price", "current price", "cmp"}},
	{models.FieldCurrentReturn, []string{"current return", "current returns", "return"}},
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	titleSuffix       = regexp.MustCompile(`(?i)\s+IPO\b.*$`)
)

// DraftImporter reads a public IPO detail page and turns the facts table
// into a draft, so the operator only fills what the page lacks
type DraftImporter struct {
	timeout   time.Duration
	transport http.RoundTripper
	logger    *logrus.Entry
}

// NewDraftImporter creates an importer with a per-request timeout
func NewDraftImporter(timeout time.Duration) *DraftImporter {
	if timeout <= 0 {
		timeout = shared.DefaultHTTPRequestTimeout
	}
	return &DraftImporter{
		timeout: timeout,
		logger:  logrus.WithField("component", "DraftImporter"),
	}
}

// WithTransport routes page fetches through transport
func (i *DraftImporter) WithTransport(transport http.RoundTripper) *DraftImporter {
	i.transport = transport
	return i
}

// Import fetches pageURL and extracts a draft from it
func (i *DraftImporter) Import(ctx context.Context, pageURL string) (models.DraftCompany, error) {
	const operation = "import_draft"
	logger := i.logger.WithField("url", pageURL)

	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return models.DraftCompany{}, shared.NewServiceError(shared.ErrorCategoryValidation, "INVALID_URL",
			fmt.Sprintf("invalid page URL %q", pageURL), "draft-importer", operation, err)
	}

	c := colly.NewCollector(colly.UserAgent(shared.BrowserUserAgent))
	c.SetRequestTimeout(i.timeout)
	if i.transport != nil {
		c.WithTransport(i.transport)
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		logger.Debug("Fetching IPO detail page")
	})

	var (
		draft    models.DraftCompany
		found    bool
		visitErr error
	)

	c.OnHTML("html", func(e *colly.HTMLElement) {
		draft = ExtractDraft(e.DOM, e.Request.URL)
		found = true
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = shared.NewServiceError(shared.ErrorCategoryNetwork, "PAGE_FETCH_FAILED",
			fmt.Sprintf("failed to fetch %s", pageURL), "draft-importer", operation, err).WithStatus(r.StatusCode)
	})

	if err := c.Visit(base.String()); err != nil && visitErr == nil {
		visitErr = shared.NewServiceError(shared.ErrorCategoryNetwork, "PAGE_FETCH_FAILED",
			fmt.Sprintf("failed to fetch %s", pageURL), "draft-importer", operation, err)
	}
	c.Wait()

	if ctx.Err() != nil {
		return models.DraftCompany{}, ctx.Err()
	}
	if visitErr != nil {
		logger.WithError(visitErr).Warn("Import failed")
		return models.DraftCompany{}, visitErr
	}
	if !found {
		return models.DraftCompany{}, shared.NewServiceError(shared.ErrorCategoryProcessing, "NO_HTML",
			"page did not contain an HTML document", "draft-importer", operation, nil)
	}

	logger.WithField("missing", len(draft.MissingFields())).Info("Imported draft from page")
	return draft, nil
}

// ExtractDraft reads a draft out of a parsed page. Fields the page does not
// carry are left blank; status is only set when it names a known status.
func ExtractDraft(root *goquery.Selection, base *url.URL) models.DraftCompany {
	var draft models.DraftCompany

	name := firstText(root, "h1.page-title", "h1", ".company-name", ".ipo-title", "title")
	draft.CompanyName = strings.TrimSpace(titleSuffix.ReplaceAllString(name, ""))

	if logo := firstAttr(root, "src", "img.company-logo", ".company-logo img", ".logo img"); logo != "" {
		draft.CompanyLogo = resolveURL(base, logo)
	} else if logo := firstAttr(root, "content", "meta[property='og:image']"); logo != "" {
		draft.CompanyLogo = resolveURL(base, logo)
	}

	facts := tableFacts(root)
	for _, entry := range labelAliases {
		value := lookupFact(facts, entry.aliases)
		if value == "" {
			continue
		}
		if entry.field == models.FieldStatus {
			status, ok := models.ParseRoundStatus(value)
			if !ok {
				continue
			}
			value = string(status)
		}
		if next, err := draft.With(entry.field, value); err == nil {
			draft = next
		}
	}

	root.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		text := strings.ToLower(link.Text() + " " + href)
		switch {
		case strings.Contains(text, "drhp"):
			if draft.Document.DRHPPDF == "" {
				draft.Document.DRHPPDF = resolveURL(base, href)
			}
		case strings.Contains(text, "rhp"):
			if draft.Document.RHPPDF == "" {
				draft.Document.RHPPDF = resolveURL(base, href)
			}
		}
	})

	return draft
}

// tableFacts collects label/value pairs from two-column table rows and
// definition lists. The first occurrence of a label wins.
func tableFacts(root *goquery.Selection) map[string]string {
	facts := make(map[string]string)
	add := func(label, value string) {
		label = normalizeLabel(label)
		value = normalizeText(value)
		if label == "" || value == "" {
			return
		}
		if _, exists := facts[label]; !exists {
			facts[label] = value
		}
	}

	root.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		add(cells.Eq(0).Text(), cells.Eq(1).Text())
	})
	root.Find("dt").Each(func(_ int, term *goquery.Selection) {
		add(term.Text(), term.NextFiltered("dd").Text())
	})

	return facts
}

func lookupFact(facts map[string]string, aliases []string) string {
	for _, alias := range aliases {
		if value, ok := facts[alias]; ok {
			return value
		}
	}
	return ""
}

func firstText(root *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		if text := normalizeText(root.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstAttr(root *goquery.Selection, attribute string, selectors ...string) string {
	for _, selector := range selectors {
		if value, ok := root.Find(selector).First().Attr(attribute); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func normalizeText(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func normalizeLabel(label string) string {
	return strings.TrimRight(strings.ToLower(normalizeText(label)), ": ")
}

func resolveURL(base *url.URL, ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
