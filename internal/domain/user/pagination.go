package user

import "math"

const (
	DefaultPageLimit int64 = 10
	MaxPageLimit     int64 = 100

	// maxOffset bounds the number of skipped records so Offset fits an int
	// on every platform.
	maxOffset int64 = math.MaxInt32
)

// Pagination represents pagination information for list responses.
type Pagination struct {
	Total      int64 // Total number of matching records
	Page       int64 // Current page number (1-based)
	Limit      int64 // Records per page
	TotalPages int64
}

// NormalizePage clamps page and limit into the accepted range. Pages past
// the largest representable offset are clamped to it; they are empty anyway.
func NormalizePage(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if maxPage := maxOffset/limit + 1; page > maxPage {
		page = maxPage
	}
	return page, limit
}

// Offset returns the number of records to skip for page.
func Offset(page, limit int64) int64 {
	return (page - 1) * limit
}

// NewPagination creates a new Pagination instance with calculated total pages.
func NewPagination(total, page, limit int64) *Pagination {
	var totalPages int64
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return &Pagination{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}
