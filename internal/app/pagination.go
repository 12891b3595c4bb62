package app

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination mirrors the envelope's pagination block. TotalItems is rendered
// under a resource specific key by the transport layer.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"-"`
	PerPage     int   `json:"per_page"`
}

// normalizePage clamps a 1-indexed page request and returns its offset.
func normalizePage(page, pageSize, fallbackSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = fallbackSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{CurrentPage: page, TotalPages: pages, TotalItems: total, PerPage: pageSize}
}
