package database

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"vitess.io/vitess/go/sqlescape"
)

// MySQLStore implements Store on a gorm connection to a MySQL server.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore wraps an open gorm connection.
func NewMySQLStore(db *gorm.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// DB exposes the underlying connection for repositories sharing it.
func (s *MySQLStore) DB() *gorm.DB {
	return s.db
}

// SelectMatching runs SELECT DISTINCT BINARY col FROM t WHERE col LIKE '%sub%'.
// Values are deduplicated by bytes, matching the byte comparison of Update.
func (s *MySQLStore) SelectMatching(ctx context.Context, q SelectQuery) ([]Row, error) {
	sql, args := buildSelect(q)
	rows, err := s.db.WithContext(ctx).Raw(sql, args...).Rows()
	if err != nil {
		return nil, &StoreError{Op: "select", Table: q.Table, Err: err}
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, &StoreError{Op: "select", Table: q.Table, Err: err}
		}
		out = append(out, Row{Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "select", Table: q.Table, Err: err}
	}
	return out, nil
}

// Update runs UPDATE t SET col = new WHERE col = old, comparing bytes so
// values differing only in case or trailing spaces are left alone.
func (s *MySQLStore) Update(ctx context.Context, q UpdateQuery) (int64, error) {
	sql, args := buildUpdate(q)
	res := s.db.WithContext(ctx).Exec(sql, args...)
	if res.Error != nil {
		return 0, &StoreError{Op: "update", Table: q.Table, Err: res.Error}
	}
	return res.RowsAffected, nil
}

func (s *MySQLStore) ListTables(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Raw(
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME LIKE ? ORDER BY TABLE_NAME",
		EscapeLike(prefix)+"%",
	).Scan(&names).Error
	if err != nil {
		return nil, &StoreError{Op: "list tables", Err: err}
	}
	return names, nil
}

func (s *MySQLStore) ListColumns(ctx context.Context, table string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Raw(
		"SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
		table,
	).Scan(&names).Error
	if err != nil {
		return nil, &StoreError{Op: "list columns", Table: table, Err: err}
	}
	return names, nil
}

// CopyTable drops dst, recreates it with src's definition and copies every
// row. DDL commits implicitly, so the three steps are not atomic.
func (s *MySQLStore) CopyTable(ctx context.Context, src, dst string) error {
	db := s.db.WithContext(ctx)
	for _, stmt := range copyStatements(src, dst) {
		if err := db.Exec(stmt).Error; err != nil {
			return &StoreError{Op: "copy", Table: dst, Err: err}
		}
	}
	return nil
}

func buildSelect(q SelectQuery) (string, []interface{}) {
	col := sqlescape.EscapeID(q.Column)
	var b strings.Builder
	b.WriteString("SELECT DISTINCT BINARY ")
	b.WriteString(col)
	b.WriteString(" AS ")
	b.WriteString(col)
	b.WriteString(" FROM ")
	b.WriteString(sqlescape.EscapeID(q.Table))
	b.WriteString(" WHERE ")
	b.WriteString(col)
	b.WriteString(" LIKE ?")
	args := []interface{}{"%" + EscapeLike(q.Substring) + "%"}
	args = appendScope(&b, args, q.Scope)
	return b.String(), args
}

func buildUpdate(q UpdateQuery) (string, []interface{}) {
	col := sqlescape.EscapeID(q.Column)
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(sqlescape.EscapeID(q.Table))
	b.WriteString(" SET ")
	b.WriteString(col)
	b.WriteString(" = ? WHERE ")
	b.WriteString(col)
	b.WriteString(" = BINARY ?")
	args := []interface{}{q.New, q.Old}
	args = appendScope(&b, args, q.Scope)
	return b.String(), args
}

func appendScope(b *strings.Builder, args []interface{}, sc *Scope) []interface{} {
	if sc == nil {
		return args
	}
	b.WriteString(" AND ")
	b.WriteString(sqlescape.EscapeID(sc.Column))
	if sc.Prefix {
		b.WriteString(" LIKE ?")
		return append(args, EscapeLike(sc.Value)+"%")
	}
	b.WriteString(" = ?")
	return append(args, sc.Value)
}

func copyStatements(src, dst string) []string {
	s, d := sqlescape.EscapeID(src), sqlescape.EscapeID(dst)
	return []string{
		"DROP TABLE IF EXISTS " + d,
		"CREATE TABLE " + d + " LIKE " + s,
		"INSERT INTO " + d + " SELECT * FROM " + s,
	}
}
