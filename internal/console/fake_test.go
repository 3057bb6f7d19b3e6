package console

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/simp-lee/userlist/internal/domain"
)

// memCollection is an in-memory domain.UserCollection.
type memCollection struct {
	mu     sync.Mutex
	users  []domain.User
	nextID int

	listErr   error
	createErr error
	deleteErr error

	// gate, when set, holds every List call until it is closed.
	gate chan struct{}
}

func newMemCollection(n int) *memCollection {
	m := &memCollection{nextID: 1}
	for i := 1; i <= n; i++ {
		status := domain.StatusActive
		if i%2 == 0 {
			status = domain.StatusInactive
		}
		_, _ = m.Create(context.Background(), domain.UserFields{
			Username: fmt.Sprintf("user%d", i),
			Email:    fmt.Sprintf("user%d@example.com", i),
			Name:     fmt.Sprintf("Name%d", i),
			Lastname: fmt.Sprintf("Last%d", i),
			Status:   status,
			Age:      20 + i,
		})
	}
	return m
}

func (m *memCollection) List(_ context.Context, q domain.ListQuery) (*domain.ListResult, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	var matched []domain.User
	search := strings.ToLower(q.Search)
	for _, u := range m.users {
		if q.Status != "" && u.Status != q.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Lastname), search) {
			continue
		}
		matched = append(matched, u)
	}

	start := min(q.Offset, len(matched))
	end := min(start+q.Limit, len(matched))
	return &domain.ListResult{Records: slices.Clone(matched[start:end]), Total: len(matched)}, nil
}

func (m *memCollection) Create(_ context.Context, fields domain.UserFields) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	u := domain.User{BaseModel: domain.BaseModel{ID: domain.ID(fmt.Sprint(m.nextID))}, UserFields: fields}
	m.nextID++
	m.users = append(m.users, u)
	return &u, nil
}

func (m *memCollection) Update(_ context.Context, id domain.ID, fields domain.UserFields) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].UserFields = fields
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.NewAppError(domain.CodeNotFound, "user not found", nil)
}

func (m *memCollection) Delete(_ context.Context, id domain.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	i := slices.IndexFunc(m.users, func(u domain.User) bool { return u.ID == id })
	if i < 0 {
		return domain.NewAppError(domain.CodeNotFound, "user not found", nil)
	}
	m.users = slices.Delete(m.users, i, i+1)
	return nil
}

func (m *memCollection) get(id domain.ID) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.users, func(u domain.User) bool { return u.ID == id })
	if i < 0 {
		return domain.User{}, false
	}
	return m.users[i], true
}

// lockedBuffer is a bytes.Buffer safe to read while a session writes to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
