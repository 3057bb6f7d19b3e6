package controller

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/simp-lee/userlist/internal/domain"
)

// fakeCollection is an in-memory domain.UserCollection with error injection
// and a per-call hook for ordering list responses.
type fakeCollection struct {
	mu     sync.Mutex
	users  []domain.User
	nextID int

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	// listErrOn fails only the given 1-based list call.
	listErrOn map[int]error
	listCalls []domain.ListQuery
	// onList runs after a list result is computed and before it is returned.
	// call is 1-based.
	onList func(call int)
}

var _ domain.UserCollection = (*fakeCollection)(nil)

func newFakeCollection() *fakeCollection {
	return &fakeCollection{nextID: 1}
}

// seed adds n users named user1..userN with alternating status.
func (f *fakeCollection) seed(n int) {
	for i := 1; i <= n; i++ {
		status := domain.StatusActive
		if i%2 == 0 {
			status = domain.StatusInactive
		}
		_, _ = f.Create(context.Background(), domain.UserFields{
			Username: "user" + strconv.Itoa(i),
			Email:    "user" + strconv.Itoa(i) + "@example.com",
			Name:     "Name" + strconv.Itoa(i),
			Lastname: "Last" + strconv.Itoa(i),
			Status:   status,
			Age:      20 + i,
		})
	}
}

func (f *fakeCollection) List(_ context.Context, q domain.ListQuery) (*domain.ListResult, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, q)
	call := len(f.listCalls)
	err := f.listErr
	if e, ok := f.listErrOn[call]; ok {
		err = e
	}

	var res *domain.ListResult
	if err == nil {
		matched := make([]domain.User, 0, len(f.users))
		for _, u := range f.users {
			if q.Status != "" && u.Status != q.Status {
				continue
			}
			if s := strings.ToLower(q.Search); s != "" &&
				!strings.Contains(strings.ToLower(u.Name), s) &&
				!strings.Contains(strings.ToLower(u.Lastname), s) {
				continue
			}
			matched = append(matched, u)
		}
		start := min(q.Offset, len(matched))
		end := min(start+q.Limit, len(matched))
		res = &domain.ListResult{Records: slices.Clone(matched[start:end]), Total: len(matched)}
	}
	hook := f.onList
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (f *fakeCollection) Create(_ context.Context, fields domain.UserFields) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	u := domain.User{BaseModel: domain.BaseModel{ID: domain.ID(strconv.Itoa(f.nextID))}, UserFields: fields}
	f.nextID++
	f.users = append(f.users, u)
	return &u, nil
}

func (f *fakeCollection) Update(_ context.Context, id domain.ID, fields domain.UserFields) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].UserFields = fields
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCollection) Delete(_ context.Context, id domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.users {
		if f.users[i].ID == id {
			f.users = slices.Delete(f.users, i, i+1)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeCollection) calls() []domain.ListQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.listCalls)
}

func (f *fakeCollection) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeCollection) setOnList(fn func(call int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onList = fn
}

func (f *fakeCollection) failListCall(call int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErrOn == nil {
		f.listErrOn = make(map[int]error)
	}
	f.listErrOn[call] = err
}
