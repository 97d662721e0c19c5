package pagination

// Page is one batch of items plus its cursor metadata.
type Page[T any] interface {
	CurrentPage() int
	LastPage() int
	Data() []T
}

// Response is the JSON page envelope:
//
//	{"data": [...], "current_page": 2, "last_page": 7}
type Response[T any] struct {
	Items   []T `json:"data"`
	Current int `json:"current_page"`
	Last    int `json:"last_page"`
}

// CurrentPage implements Page.
func (r *Response[T]) CurrentPage() int { return r.Current }

// LastPage implements Page.
func (r *Response[T]) LastPage() int { return r.Last }

// Data implements Page.
func (r *Response[T]) Data() []T { return r.Items }

// NewPage builds a Page from its parts.
func NewPage[T any](items []T, current, last int) Page[T] {
	return &Response[T]{Items: items, Current: current, Last: last}
}
