package viewmodel

import (
	"sort"
	"strings"
	"time"

	"carwash/internal/models"
)

// VisiblePage is the computed slice of rows plus pagination metadata.
type VisiblePage struct {
	Rows        []*models.Booking `json:"rows"`
	TotalItems  int               `json:"totalItems"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
}

// ComputeVisiblePage filters, sorts and paginates records. Records are
// never modified; the returned rows share pointers with the input.
func ComputeVisiblePage(records []*models.Booking, vs ViewState) VisiblePage {
	filtered := Filter(records, vs)
	Sort(filtered, vs.SortColumn, vs.SortDirection)
	return Paginate(filtered, vs.PageIndex, vs.PageSize)
}

// Filter keeps the records matching the status filter and then either the
// search term or, only when the term is empty, the date filter.
func Filter(records []*models.Booking, vs ViewState) []*models.Booking {
	term := strings.ToLower(vs.SearchTerm)
	out := make([]*models.Booking, 0, len(records))

	for _, b := range records {
		if b == nil {
			continue
		}
		if vs.StatusFilter != "" && vs.StatusFilter != models.StatusAll && string(b.Status) != vs.StatusFilter {
			continue
		}
		if term != "" {
			if matchesTerm(b, term) {
				out = append(out, b)
			}
			// the date filter is not consulted once a term is set
			continue
		}
		if vs.DateFilter != "" && b.Date != vs.DateFilter {
			continue
		}
		out = append(out, b)
	}
	return out
}

func matchesTerm(b *models.Booking, lowerTerm string) bool {
	for _, field := range []string{b.ID, b.Name, b.Email, b.Phone, b.Service} {
		if strings.Contains(strings.ToLower(field), lowerTerm) {
			return true
		}
	}
	return false
}

// Sort orders records in place with a stable sort. With no column the
// order is createdAt, newest first.
func Sort(records []*models.Booking, column string, dir SortDirection) {
	if column == "" {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		})
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		if column == ColumnDate {
			return dateLess(records[i].Date, records[j].Date, dir)
		}
		c := compare(records[i], records[j], column)
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b *models.Booking, column string) int {
	switch column {
	case ColumnCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return strings.Compare(field(a, column), field(b, column))
	}
}

// dateLess orders calendar dates in dir. Unparseable dates sort after every
// valid one in both directions and tie with each other, so they keep their
// relative order.
func dateLess(a, b string, dir SortDirection) bool {
	ta, errA := time.Parse(models.DateLayout, a)
	tb, errB := time.Parse(models.DateLayout, b)
	switch {
	case errA != nil:
		return false
	case errB != nil:
		return true
	case dir == Desc:
		return ta.After(tb)
	default:
		return ta.Before(tb)
	}
}

func field(b *models.Booking, column string) string {
	switch column {
	case ColumnID:
		return b.ID
	case ColumnName:
		return b.Name
	case ColumnEmail:
		return b.Email
	case ColumnPhone:
		return b.Phone
	case ColumnService:
		return b.Service
	case ColumnTime:
		return b.Time
	case ColumnStatus:
		return string(b.Status)
	case ColumnMessage:
		return b.Message
	default:
		return ""
	}
}

// TotalPages is ceil(items/size).
func TotalPages(items, size int) int {
	if size < 1 {
		size = models.DefaultPageSize
	}
	return (items + size - 1) / size
}

// Paginate cuts one page out of records. Pages past the end are empty;
// the page index is not clamped.
func Paginate(records []*models.Booking, page, size int) VisiblePage {
	if size < 1 {
		size = models.DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	vp := VisiblePage{
		Rows:        []*models.Booking{},
		TotalItems:  len(records),
		TotalPages:  TotalPages(len(records), size),
		CurrentPage: page,
	}

	start := (page - 1) * size
	if start >= len(records) {
		return vp
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	vp.Rows = records[start:end]
	return vp
}
