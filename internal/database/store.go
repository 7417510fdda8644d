package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Store is the relational port the rewrite and copy steps run against. Table
// and column names are physical names; implementations quote them.
type Store interface {
	// SelectMatching returns the distinct values of a column that contain
	// the query's substring literally.
	SelectMatching(ctx context.Context, q SelectQuery) ([]Row, error)
	// Update sets the column to New on every row whose column equals Old
	// and returns the affected row count.
	Update(ctx context.Context, q UpdateQuery) (int64, error)
	// ListTables returns table names starting with prefix literally.
	ListTables(ctx context.Context, prefix string) ([]string, error)
	// ListColumns returns a table's columns in ordinal order.
	ListColumns(ctx context.Context, table string) ([]string, error)
	// CopyTable replaces dst with a structural and data copy of src.
	CopyTable(ctx context.Context, src, dst string) error
}

// Row is one selected column value.
type Row struct {
	Value string
}

// Scope narrows a query on a shared table to one tenant's rows.
type Scope struct {
	Column string
	Value  string
	// Prefix compares with LIKE 'Value%' instead of equality.
	Prefix bool
}

type SelectQuery struct {
	Table     string
	Column    string
	Substring string
	Scope     *Scope
}

type UpdateQuery struct {
	Table  string
	Column string
	Old    string
	New    string
	Scope  *Scope
}

// EscapeLike escapes the LIKE metacharacters of s so it matches literally
// under the default backslash escape.
func EscapeLike(s string) string {
	if !strings.ContainsAny(s, `\%_`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '%', '_':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// StoreError wraps a failure of a Store operation.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// MySQL server error numbers worth another attempt.
const (
	errLockWaitTimeout uint16 = 1205
	errDeadlock        uint16 = 1213
)

// IsRetryable reports lock timeouts, deadlocks and dropped connections.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == errLockWaitTimeout || myErr.Number == errDeadlock
	}
	return errors.Is(err, mysql.ErrInvalidConn)
}
