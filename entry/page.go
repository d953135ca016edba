package entry

const DefaultPageSize = 10

// Page is one slice of a listing or search together with the total number
// of matches the server reported for the whole query.
type Page struct {
	Items []Entry `json:"items"`
	Total int     `json:"total"`
}

// PageCount returns ceil(total / size), or 0 when there is nothing to show.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}

	return (total + size - 1) / size
}

func ValidPage(page, size int) error {
	if page < 1 || size < 1 {
		return ErrInvalidPage
	}

	return nil
}

// Normalize enforces len(Items) <= size and Total >= len(Items). It reports
// whether items had to be dropped.
func (p *Page) Normalize(size int) bool {
	if p.Items == nil {
		p.Items = []Entry{}
	}

	truncated := false
	if size > 0 && len(p.Items) > size {
		p.Items = p.Items[:size]
		truncated = true
	}

	if p.Total < len(p.Items) {
		p.Total = len(p.Items)
	}

	return truncated
}
