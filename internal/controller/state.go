package controller

import (
	"slices"

	"github.com/simp-lee/userlist/internal/domain"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 10

// Phase is the list's loading status, derived from State.
type Phase int

const (
	// PhaseIdle means no list fetch has been issued yet.
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Filters narrow the list on the server. An empty Status means any status.
type Filters struct {
	Status domain.Status
	Search string
}

// Pagination is the page window. Offset is kept a multiple of Limit.
type Pagination struct {
	Limit  int
	Offset int
}

// Page returns the 1-based page number of the window.
func (p Pagination) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// FilterPatch is a partial update of Filters; nil fields are left unchanged.
type FilterPatch struct {
	Status *domain.Status
	Search *string
}

// PaginationPatch is a partial update of Pagination; nil fields are left unchanged.
type PaginationPatch struct {
	Limit  *int
	Offset *int
}

// State is an immutable snapshot of the list. Records and Total always come
// from the last fetch that completed successfully, so they stay visible
// while a newer fetch is loading or after one fails.
type State struct {
	Records    []domain.User
	Total      int
	Loading    bool
	Error      string
	Filters    Filters
	Pagination Pagination

	inFlight int
	fetched  bool
}

// Phase derives the loading status from the snapshot.
func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.Error != "":
		return PhaseFailed
	case s.fetched:
		return PhaseLoaded
	default:
		return PhaseIdle
	}
}

// TotalPages is the number of pages Total spans at the current page size.
func (s State) TotalPages() int {
	if s.Pagination.Limit <= 0 || s.Total <= 0 {
		return 0
	}
	return (s.Total + s.Pagination.Limit - 1) / s.Pagination.Limit
}

// Query is the list request the snapshot's filters and window describe.
func (s State) Query() domain.ListQuery {
	return domain.ListQuery{
		Limit:  s.Pagination.Limit,
		Offset: s.Pagination.Offset,
		Status: s.Filters.Status,
		Search: s.Filters.Search,
	}
}

func (s State) clone() State {
	s.Records = slices.Clone(s.Records)
	return s
}

func initialState(limit int, filters Filters) State {
	return State{
		Records:    []domain.User{},
		Filters:    filters,
		Pagination: Pagination{Limit: limit},
	}
}

type actionType int

const (
	actionFetchInit actionType = iota
	actionFetchSuccess
	actionFetchFailure
	actionFetchDiscard
	actionSetFilters
	actionSetPagination
)

type action struct {
	typ        actionType
	result     *domain.ListResult
	err        string
	filters    FilterPatch
	pagination PaginationPatch
}

// reduce returns the state that follows s under a. It never mutates s.
func reduce(s State, a action) State {
	switch a.typ {
	case actionFetchInit:
		s.inFlight++
		s.Loading = true
		s.Error = ""
	case actionFetchSuccess:
		s = settle(s)
		s.fetched = true
		s.Records = a.result.Records
		s.Total = a.result.Total
	case actionFetchFailure:
		s = settle(s)
		s.Error = a.err
	case actionFetchDiscard:
		s = settle(s)
	case actionSetFilters:
		if a.filters.Status != nil {
			s.Filters.Status = *a.filters.Status
		}
		if a.filters.Search != nil {
			s.Filters.Search = *a.filters.Search
		}
		s.Pagination.Offset = 0
	case actionSetPagination:
		if a.pagination.Limit != nil {
			s.Pagination.Limit = *a.pagination.Limit
		}
		if a.pagination.Offset != nil {
			s.Pagination.Offset = *a.pagination.Offset
		}
	default:
		panic("controller: unhandled action type")
	}
	return s
}

func settle(s State) State {
	if s.inFlight > 0 {
		s.inFlight--
	}
	s.Loading = s.inFlight > 0
	return s
}
