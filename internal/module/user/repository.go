package user

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/simp-lee/userlist/internal/domain"
	"github.com/simp-lee/userlist/internal/pkg"
)

// Columns a list request may sort or search on.
var (
	allowedSortFields = []string{"id", "username", "email", "name", "lastname", "status", "age"}
	searchFields      = []string{"name", "lastname"}
)

// defaultOrder keeps records in insertion order when no sort is requested.
const defaultOrder = "created_at asc, id asc"

// userRepository implements domain.UserRepository using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository backed by the given GORM database.
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user into the database.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// GetByID retrieves a user by its primary key.
func (r *userRepository) GetByID(ctx context.Context, id domain.ID) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// List returns one page of users matching the query's filters together with
// the number of matching users across all pages.
func (r *userRepository) List(ctx context.Context, q domain.ListQuery) (*domain.ListResult, error) {
	filtered := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&domain.User{}).
			Scopes(pkg.FilterStatus(q), pkg.Search(q, searchFields))
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	users := make([]domain.User, 0, q.Limit)
	if err := filtered().Scopes(
		pkg.Sort(q, allowedSortFields, defaultOrder),
		pkg.Paginate(q),
	).Find(&users).Error; err != nil {
		return nil, mapError(err)
	}

	return &domain.ListResult{Records: users, Total: int(total)}, nil
}

// Update replaces the stored fields of an existing user. The creation time
// of the stored row is kept.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var existing domain.User
		if err := tx.Where("id = ?", string(user.ID)).First(&existing).Error; err != nil {
			return mapError(err)
		}
		user.CreatedAt = existing.CreatedAt
		if err := tx.Save(user).Error; err != nil {
			return mapError(err)
		}
		return nil
	})
}

// Delete removes a user by ID.
func (r *userRepository) Delete(ctx context.Context, id domain.ID) error {
	result := r.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&domain.User{})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the number of stored users.
func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error; err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, duplicateMessage(err), err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations by examining the
// error message. This is needed because not all GORM dialectors translate
// driver-level errors to gorm.ErrDuplicatedKey (e.g. the pure-Go SQLite driver).
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

// duplicateMessage names the conflicting column when the driver reports it.
func duplicateMessage(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "username"):
		return "username already exists"
	case strings.Contains(msg, "email"):
		return "email already exists"
	default:
		return "already exists"
	}
}
