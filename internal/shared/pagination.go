package shared

// Default and maximum page sizes for list endpoints.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 500
)

// Page bounds a listing query.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps limit and offset to sane values.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
