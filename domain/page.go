package domain

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest selects a window of a listing.
type PageRequest struct {
	Skip  int
	Limit int
}

func (p PageRequest) Validate() error {
	if p.Skip < 0 {
		return &ValidationError{Field: "skip", Reason: "must not be negative"}
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return &ValidationError{Field: "limit", Reason: "must be between 1 and 100"}
	}
	return nil
}

// PageInfo describes the window returned by Paginate.
type PageInfo struct {
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// Paginate returns the items of p's window in input order. p must be valid.
func Paginate[T any](items []T, p PageRequest) ([]T, PageInfo) {
	info := PageInfo{
		Total:   len(items),
		Page:    p.Skip/p.Limit + 1,
		Limit:   p.Limit,
		HasNext: p.Skip+p.Limit < len(items),
		HasPrev: p.Skip > 0,
	}
	if p.Skip >= len(items) {
		return []T{}, info
	}
	end := min(p.Skip+p.Limit, len(items))
	return append([]T{}, items[p.Skip:end]...), info
}
