package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is an opaque, server-assigned record identifier.
//
// It decodes from either a JSON string or a JSON number so that collections
// using numeric keys and collections using UUIDs look the same to callers.
type ID string

// UnmarshalJSON accepts "abc", 42 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as a plain string.
func (id ID) String() string {
	return string(id)
}

// BaseModel is the common base struct for persisted records.
// It replaces gorm.Model to avoid the implicit soft delete behavior of DeletedAt.
// Timestamps stay server-side; the wire shape of a record is its ID plus its fields.
type BaseModel struct {
	ID        ID        `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// ListQuery holds the window and filters of a list request.
type ListQuery struct {
	Limit  int
	Offset int
	Status Status
	Search string
	// Sort is "field:asc" or "field:desc"; empty means server order.
	Sort string
}

// ListResult is one page of records plus the total number of records
// matching the query's filters, independent of the page size.
type ListResult struct {
	Records []User
	Total   int
}
