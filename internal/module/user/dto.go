package user

import (
	"strings"

	"github.com/simp-lee/userlist/internal/domain"
)

// UserRequest is the body of POST /users and PUT /users/:id. An update
// replaces every field, so both share one shape.
type UserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Name     string `json:"name" binding:"required,max=100"`
	Lastname string `json:"lastname" binding:"required,max=100"`
	Status   string `json:"status" binding:"required,oneof=active inactive"`
	Age      int    `json:"age" binding:"gte=0,lte=150"`
}

// Fields converts the request to domain fields with surrounding whitespace removed.
func (r UserRequest) Fields() domain.UserFields {
	return domain.UserFields{
		Username: strings.TrimSpace(r.Username),
		Email:    strings.TrimSpace(r.Email),
		Name:     strings.TrimSpace(r.Name),
		Lastname: strings.TrimSpace(r.Lastname),
		Status:   domain.Status(strings.TrimSpace(r.Status)),
		Age:      r.Age,
	}
}
