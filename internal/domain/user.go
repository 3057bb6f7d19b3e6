package domain

import (
	"context"
)

// Status is the lifecycle state of a user.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// UserFields are the mutable attributes of a user. Every field except the ID
// is replaced on update.
type UserFields struct {
	Username string `gorm:"size:100;uniqueIndex;not null" json:"username" validate:"required,min=3,max=100"`
	Email    string `gorm:"size:255;uniqueIndex;not null" json:"email" validate:"required,email,max=255"`
	Name     string `gorm:"size:100;not null" json:"name" validate:"required,max=100"`
	Lastname string `gorm:"size:100;not null" json:"lastname" validate:"required,max=100"`
	Status   Status `gorm:"size:16;index;not null" json:"status" validate:"required,oneof=active inactive"`
	Age      int    `gorm:"not null;default:0" json:"age" validate:"gte=0,lte=150"`
}

// User is a user record as stored by the collection.
type User struct {
	BaseModel
	UserFields
}

// Fields returns the mutable part of the record.
func (u User) Fields() UserFields {
	return u.UserFields
}

// UserCollection is the remote source of truth for users as seen by a client.
type UserCollection interface {
	List(ctx context.Context, q ListQuery) (*ListResult, error)
	Create(ctx context.Context, fields UserFields) (*User, error)
	Update(ctx context.Context, id ID, fields UserFields) (*User, error)
	Delete(ctx context.Context, id ID) error
}

// UserRepository defines the data access interface for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id ID) (*User, error)
	List(ctx context.Context, q ListQuery) (*ListResult, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id ID) error
	Count(ctx context.Context) (int64, error)
}

// UserService defines the business logic interface for users.
type UserService interface {
	CreateUser(ctx context.Context, fields UserFields) (*User, error)
	GetUser(ctx context.Context, id ID) (*User, error)
	ListUsers(ctx context.Context, q ListQuery) (*ListResult, error)
	UpdateUser(ctx context.Context, id ID, fields UserFields) (*User, error)
	DeleteUser(ctx context.Context, id ID) error
}
