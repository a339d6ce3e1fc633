package domain

import "strings"

// City represents a city entity with its owned points of interest
type City struct {
	ID          int    `json:"id" reindex:"id,,pk"`
	Name        string `json:"name" reindex:"name,tree,collate_utf8"`
	Description string `json:"description" reindex:"description,tree,collate_utf8"`

	// PointOfInterestCount is populated by every repository, even when
	// PointsOfInterest is not hydrated.
	PointOfInterestCount int               `json:"poi_count" reindex:"poi_count"`
	PointsOfInterest     []PointOfInterest `json:"points_of_interest"`
}

// PointOfInterest represents a point of interest owned by a city
type PointOfInterest struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SyncPointOfInterestCount sets the stored count from the hydrated children.
// Called before a city is written to a store.
func (c *City) SyncPointOfInterestCount() {
	c.PointOfInterestCount = len(c.PointsOfInterest)
}

// WithoutPointsOfInterest returns a copy of the city with children dropped
// and the count preserved.
func (c City) WithoutPointsOfInterest() City {
	c.PointsOfInterest = nil
	return c
}

// CityQuery carries the filters and page position of a list request
type CityQuery struct {
	Name        string
	SearchQuery string
	PageNumber  int
	PageSize    int
}

// HasNameFilter reports whether the exact name filter applies
func (q CityQuery) HasNameFilter() bool {
	return q.Name != ""
}

// HasSearchQuery reports whether the substring search applies
func (q CityQuery) HasSearchQuery() bool {
	return q.SearchQuery != ""
}

// InRange reports whether the page number can address any item at all.
// Non-positive page numbers always yield an empty page.
func (q CityQuery) InRange() bool {
	return q.PageNumber >= 1 && q.PageSize >= 1
}

// Offset returns the number of matching items skipped before the page
func (q CityQuery) Offset() int {
	if !q.InRange() {
		return 0
	}
	return (q.PageNumber - 1) * q.PageSize
}

// MatchesName applies the case-insensitive exact name filter
func (q CityQuery) MatchesName(c *City) bool {
	if !q.HasNameFilter() {
		return true
	}
	return strings.EqualFold(c.Name, q.Name)
}

// MatchesSearch applies the case-insensitive substring search over name or description
func (q CityQuery) MatchesSearch(c *City) bool {
	if !q.HasSearchQuery() {
		return true
	}
	needle := strings.ToLower(q.SearchQuery)
	return strings.Contains(strings.ToLower(c.Name), needle) ||
		strings.Contains(strings.ToLower(c.Description), needle)
}

// Matches applies both filters conjunctively
func (q CityQuery) Matches(c *City) bool {
	return q.MatchesName(c) && q.MatchesSearch(c)
}

// PaginationMetadata describes the position of a page within the full matching set
type PaginationMetadata struct {
	TotalItemCount int `json:"totalItemCount"`
	PageSize       int `json:"pageSize"`
	CurrentPage    int `json:"currentPage"`
	TotalPages     int `json:"totalPages"`
}

// NewPaginationMetadata computes the metadata from the total matching count,
// the effective page size and the requested page number. currentPage is
// echoed as given, including zero and negative values.
func NewPaginationMetadata(totalItemCount, pageSize, currentPage int) PaginationMetadata {
	totalPages := 0
	if totalItemCount > 0 && pageSize > 0 {
		totalPages = (totalItemCount + pageSize - 1) / pageSize
	}
	return PaginationMetadata{
		TotalItemCount: totalItemCount,
		PageSize:       pageSize,
		CurrentPage:    currentPage,
		TotalPages:     totalPages,
	}
}
