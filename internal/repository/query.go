package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert or update violates a unique index.
var ErrDuplicate = errors.New("duplicate key")

const uniqueViolation = pq.ErrorCode("23505")

// translateWriteError maps unique violations to ErrDuplicate so services can
// answer with a conflict.
func translateWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// conditionBuilder accumulates AND-ed WHERE fragments with positional args.
type conditionBuilder struct {
	conditions []string
	args       []interface{}
}

// add appends a condition whose single placeholder is written as "?".
func (b *conditionBuilder) add(condition string, arg interface{}) {
	b.args = append(b.args, arg)
	b.conditions = append(b.conditions, strings.ReplaceAll(condition, "?", fmt.Sprintf("$%d", len(b.args))))
}

func (b *conditionBuilder) where(base string) string {
	if len(b.conditions) == 0 {
		return base
	}
	return base + " AND " + strings.Join(b.conditions, " AND ")
}

func paginate(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func orderBy(sortBy, sortOrder string, allowed map[string]string, fallback string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed[fallback]
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return column + " " + order
}
