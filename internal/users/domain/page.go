package domain

// Page is one slice of a paginated listing. Page numbers start at 1.
type Page[T any] struct {
	Items []T
	Page  int
	Size  int
	Total int
}

// Pages returns the number of pages Total spans.
func (p Page[T]) Pages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}
