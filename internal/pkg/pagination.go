package pkg

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simp-lee/userlist/internal/domain"
)

// Query parameters follow json-server conventions.
const (
	ParamLimit  = "_limit"
	ParamStart  = "_start"
	ParamSort   = "_sort"
	ParamOrder  = "_order"
	ParamStatus = "status"
	ParamSearch = "q"

	// TotalCountHeader carries the filtered total of a list response.
	TotalCountHeader = "X-Total-Count"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// validFieldName matches only alphanumeric characters and underscores.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseListQuery extracts the page window, filters and sort order from query
// params. Out-of-range values fall back to defaults instead of failing, the
// way json-server does. maxLimit <= 0 means MaxLimit.
func ParseListQuery(c *gin.Context, maxLimit int) domain.ListQuery {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}

	limit, err := strconv.Atoi(c.Query(ParamLimit))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	limit = min(limit, maxLimit)

	offset, err := strconv.Atoi(c.Query(ParamStart))
	if err != nil || offset < 0 {
		offset = 0
	}

	var sort string
	if field := strings.TrimSpace(c.Query(ParamSort)); field != "" {
		order := strings.ToLower(strings.TrimSpace(c.DefaultQuery(ParamOrder, "asc")))
		sort = field + ":" + order
	}

	return domain.ListQuery{
		Limit:  limit,
		Offset: offset,
		Status: domain.Status(strings.TrimSpace(c.Query(ParamStatus))),
		Search: strings.TrimSpace(c.Query(ParamSearch)),
		Sort:   sort,
	}
}

// Paginate returns a GORM scope that applies LIMIT and OFFSET from the query.
func Paginate(q domain.ListQuery) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(q.Offset).Limit(q.Limit)
	}
}

// Sort returns a GORM scope that applies ORDER BY from the query, falling
// back to fallback when the requested order is missing or not allowed.
// Field names are validated against a strict pattern to prevent SQL injection.
func Sort(q domain.ListQuery, allowed []string, fallback string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		field, direction, ok := strings.Cut(q.Sort, ":")
		field = strings.TrimSpace(field)
		direction = strings.TrimSpace(strings.ToLower(direction))

		if !ok ||
			(direction != "asc" && direction != "desc") ||
			!validFieldName.MatchString(field) ||
			!slices.Contains(allowed, field) {
			if fallback == "" {
				return db
			}
			return db.Order(fallback)
		}
		return db.Order(field + " " + direction)
	}
}

// FilterStatus returns a GORM scope that keeps only rows with the query's
// status. An empty status applies no condition.
func FilterStatus(q domain.ListQuery) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q.Status == "" {
			return db
		}
		return db.Where("status = ?", string(q.Status))
	}
}

// Search returns a GORM scope matching the query's search text as a
// case-insensitive substring of any of the given columns.
func Search(q domain.ListQuery, fields []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q.Search == "" {
			return db
		}
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"

		clauses := make([]string, 0, len(fields))
		args := make([]any, 0, len(fields))
		for _, f := range fields {
			if !validFieldName.MatchString(f) {
				continue
			}
			clauses = append(clauses, "LOWER("+f+") LIKE ? ESCAPE '\\'")
			args = append(args, pattern)
		}
		if len(clauses) == 0 {
			return db
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
}

// escapeLike escapes LIKE wildcards so user input only matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
