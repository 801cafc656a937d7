// Package paging applies page/page_size semantics to in-memory result sets
// the same way the SQL repositories apply LIMIT/OFFSET.
package paging

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps page to at least 1 and pageSize to [1, MaxPageSize],
// substituting DefaultPageSize for non-positive sizes.
func Normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Offset returns the number of rows to skip for the given page.
func Offset(page, pageSize int) int {
	page, pageSize = Normalize(page, pageSize)
	return (page - 1) * pageSize
}

// Slice returns the requested page of all.
func Slice[T any](all []T, page, pageSize int) []T {
	page, pageSize = Normalize(page, pageSize)
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
