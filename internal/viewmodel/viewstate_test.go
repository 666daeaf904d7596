package viewmodel

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseViewState(t *testing.T) {
	q := url.Values{}
	q.Set("status", "Confirmed")
	q.Set("search", "Raj")
	q.Set("date", "2026-02-20")
	q.Set("sort", "date")
	q.Set("dir", "desc")
	q.Set("page", "3")
	q.Set("size", "25")

	vs := ParseViewState(q)
	assert.Equal(t, ViewState{
		StatusFilter:  "confirmed",
		SearchTerm:    "Raj",
		DateFilter:    "2026-02-20",
		SortColumn:    ColumnDate,
		SortDirection: Desc,
		PageIndex:     3,
		PageSize:      25,
	}, vs)
}

func TestParseViewStateDefaults(t *testing.T) {
	q := url.Values{}
	q.Set("status", "archived")
	q.Set("sort", "password")
	q.Set("dir", "sideways")
	q.Set("page", "-1")
	q.Set("size", "abc")

	assert.Equal(t, DefaultViewState(), ParseViewState(q))
}
