// Package viewmodel turns a bookings snapshot and a set of dashboard
// controls into the page of rows to display.
package viewmodel

import (
	"net/url"
	"strconv"
	"strings"

	"carwash/internal/models"
)

type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Sortable columns. An empty column means the default newest-first order.
const (
	ColumnID        = "id"
	ColumnName      = "name"
	ColumnEmail     = "email"
	ColumnPhone     = "phone"
	ColumnService   = "service"
	ColumnDate      = "date"
	ColumnTime      = "time"
	ColumnStatus    = "status"
	ColumnMessage   = "message"
	ColumnCreatedAt = "createdAt"
)

var sortColumns = []string{
	ColumnID, ColumnName, ColumnEmail, ColumnPhone, ColumnService,
	ColumnDate, ColumnTime, ColumnStatus, ColumnMessage, ColumnCreatedAt,
}

// IsSortColumn reports whether col can be sorted on.
func IsSortColumn(col string) bool {
	for _, c := range sortColumns {
		if c == col {
			return true
		}
	}
	return false
}

// ViewState holds the controls of one dashboard session.
type ViewState struct {
	StatusFilter  string        `json:"status"`
	SearchTerm    string        `json:"search"`
	DateFilter    string        `json:"date,omitempty"`
	SortColumn    string        `json:"sort,omitempty"`
	SortDirection SortDirection `json:"dir"`
	PageIndex     int           `json:"page"`
	PageSize      int           `json:"size"`
}

// DefaultViewState is the state of a freshly opened dashboard.
func DefaultViewState() ViewState {
	return ViewState{
		StatusFilter:  models.StatusAll,
		SortDirection: Asc,
		PageIndex:     1,
		PageSize:      models.DefaultPageSize,
	}
}

// ParseViewState reads controls from query values
// (status, search, date, sort, dir, page, size). Unknown or invalid
// values keep their defaults.
func ParseViewState(q url.Values) ViewState {
	vs := DefaultViewState()

	if s := strings.ToLower(strings.TrimSpace(q.Get("status"))); s != "" {
		if s == models.StatusAll || models.BookingStatus(s).Valid() {
			vs.StatusFilter = s
		}
	}
	vs.SearchTerm = q.Get("search")
	vs.DateFilter = strings.TrimSpace(q.Get("date"))

	if col := q.Get("sort"); IsSortColumn(col) {
		vs.SortColumn = col
	}
	if SortDirection(q.Get("dir")) == Desc {
		vs.SortDirection = Desc
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page >= 1 {
		vs.PageIndex = page
	}
	if size, err := strconv.Atoi(q.Get("size")); err == nil && size >= 1 {
		vs.PageSize = size
	}
	return vs
}
