package viewmodel

type ControlKind string

const (
	ControlPrev     ControlKind = "prev"
	ControlNext     ControlKind = "next"
	ControlPage     ControlKind = "page"
	ControlEllipsis ControlKind = "ellipsis"
)

// PageControl is one element of the pagination bar.
type PageControl struct {
	Kind     ControlKind `json:"kind"`
	Page     int         `json:"page,omitempty"`
	Active   bool        `json:"active,omitempty"`
	Disabled bool        `json:"disabled,omitempty"`
}

// PaginationControls lays out the pagination bar: prev, page 1, the
// window around the current page, the last page, next. A skipped page
// right outside the window becomes an ellipsis.
func PaginationControls(current, totalPages int) []PageControl {
	controls := []PageControl{{
		Kind:     ControlPrev,
		Page:     current - 1,
		Disabled: current <= 1,
	}}

	for i := 1; i <= totalPages; i++ {
		switch {
		case i == 1 || i == totalPages || (i >= current-1 && i <= current+1):
			controls = append(controls, PageControl{Kind: ControlPage, Page: i, Active: i == current})
		case i == current-2 || i == current+2:
			controls = append(controls, PageControl{Kind: ControlEllipsis})
		}
	}

	return append(controls, PageControl{
		Kind:     ControlNext,
		Page:     current + 1,
		Disabled: current >= totalPages,
	})
}
