package models

// PageSize is the number of companies the list endpoint returns per page.
// The server does not report it; keep in sync with its paginator.
const PageSize = 5

// Page is one materialisation of the remote collection
type Page struct {
	Items      []Company `json:"results"`
	PageNumber int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int       `json:"count"`
}

// TotalPages is derived from the count, never returned by the server
func (p Page) TotalPages() int {
	return TotalPages(p.TotalCount)
}

// TotalPages returns max(1, ceil(totalCount / PageSize))
func TotalPages(totalCount int) int {
	if totalCount <= 0 {
		return 1
	}
	pages := totalCount / PageSize
	if totalCount%PageSize != 0 {
		pages++
	}
	return pages
}
