package user

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simp-lee/userlist/internal/domain"
	"github.com/simp-lee/userlist/internal/pkg"
)

// seedFile is the json-server db.json layout.
type seedFile struct {
	Users []domain.User `json:"users"`
}

// Seed loads users from a db.json document into an empty users table.
// It returns the number of inserted users; a table that already holds rows
// is left untouched and 0 is returned. Records without an id get a UUID.
// All rows are inserted in one transaction and keep the file's order.
func Seed(ctx context.Context, db *gorm.DB, r io.Reader) (int, error) {
	var file seedFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}
	if len(file.Users) == 0 {
		return 0, nil
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	base := time.Now()
	for i := range file.Users {
		u := &file.Users[i]
		u.UserFields = normalizeFields(u.UserFields)
		if err := validateFields(validate, u.UserFields); err != nil {
			return 0, fmt.Errorf("seed user %d: %w", i, err)
		}
		if u.ID == "" {
			u.ID = domain.ID(uuid.NewString())
		}
		u.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
	}

	inserted := 0
	err := pkg.WithTx(ctx, db, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).Count(&n).Error; err != nil {
			return mapError(err)
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(&file.Users).Error; err != nil {
			return mapError(err)
		}
		inserted = len(file.Users)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed users: %w", err)
	}
	return inserted, nil
}
