package viewmodel

import (
	"sync"

	"carwash/internal/models"
)

// Dashboard is one open dashboard session: its controls plus the last
// bookings snapshot it has seen. Safe for concurrent use.
type Dashboard struct {
	mu       sync.RWMutex
	state    ViewState
	snapshot []*models.Booking
	index    map[string]int
}

func NewDashboard(pageSize int) *Dashboard {
	vs := DefaultViewState()
	if pageSize > 0 {
		vs.PageSize = pageSize
	}
	return &Dashboard{state: vs, index: make(map[string]int)}
}

// State returns a copy of the current controls.
func (d *Dashboard) State() ViewState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Page derives the visible page from the snapshot and controls.
func (d *Dashboard) Page() VisiblePage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return ComputeVisiblePage(d.snapshot, d.state)
}

// Snapshot returns the cached records.
func (d *Dashboard) Snapshot() []*models.Booking {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*models.Booking(nil), d.snapshot...)
}

// Len is the number of cached records.
func (d *Dashboard) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.snapshot)
}

func (d *Dashboard) Get(id string) (*models.Booking, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return d.snapshot[i], true
}

// Replace swaps in a fresh store snapshot. Later duplicates of an id are dropped.
func (d *Dashboard) Replace(records []*models.Booking) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshot = make([]*models.Booking, 0, len(records))
	d.index = make(map[string]int, len(records))
	for _, b := range records {
		if b == nil {
			continue
		}
		if _, dup := d.index[b.ID]; dup {
			continue
		}
		d.index[b.ID] = len(d.snapshot)
		d.snapshot = append(d.snapshot, b.Clone())
	}
}

// Merge inserts a record unless one with the same id is already cached.
// It reports whether the record was added.
func (d *Dashboard) Merge(b *models.Booking) bool {
	if b == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.index[b.ID]; ok {
		return false
	}
	d.index[b.ID] = len(d.snapshot)
	d.snapshot = append(d.snapshot, b.Clone())
	return true
}

// ApplyStatus mirrors a status update already accepted by the store.
func (d *Dashboard) ApplyStatus(id string, status models.BookingStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[id]
	if !ok {
		return false
	}
	updated := d.snapshot[i].Clone()
	updated.Status = status
	d.snapshot[i] = updated
	return true
}

// Remove drops a cached record.
func (d *Dashboard) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[id]
	if !ok {
		return false
	}
	d.snapshot = append(d.snapshot[:i], d.snapshot[i+1:]...)
	delete(d.index, id)
	for j := i; j < len(d.snapshot); j++ {
		d.index[d.snapshot[j].ID] = j
	}
	return true
}

// SetStatusFilter changes the status filter and returns to page 1.
func (d *Dashboard) SetStatusFilter(status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if status == "" {
		status = models.StatusAll
	}
	d.state.StatusFilter = status
	d.state.PageIndex = 1
}

func (d *Dashboard) SetSearch(term string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.SearchTerm = term
	d.state.PageIndex = 1
}

// SetDate sets the date filter; an empty string clears it.
func (d *Dashboard) SetDate(date string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.DateFilter = date
	d.state.PageIndex = 1
}

// SortBy toggles the direction when col is already the sort column,
// otherwise sorts ascending by col. The page is kept.
func (d *Dashboard) SortBy(col string) bool {
	if !IsSortColumn(col) {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.SortColumn == col {
		if d.state.SortDirection == Asc {
			d.state.SortDirection = Desc
		} else {
			d.state.SortDirection = Asc
		}
		return true
	}
	d.state.SortColumn = col
	d.state.SortDirection = Asc
	return true
}

// ChangePage moves to page p when 1 <= p <= ceil(len(snapshot)/size).
// The bound uses the whole snapshot, not the filtered rows, so a filtered
// view can land on an empty page.
func (d *Dashboard) ChangePage(p int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p < 1 || p > TotalPages(len(d.snapshot), d.state.PageSize) {
		return false
	}
	d.state.PageIndex = p
	return true
}
