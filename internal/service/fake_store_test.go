package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"site-cloner/internal/database"
)

type memTable struct {
	columns []string
	rows    []map[string]string
}

// memStore is an in-memory database.Store with byte-exact matching.
type memStore struct {
	mu      sync.Mutex
	tables  map[string]*memTable
	selects int
	updates int
	// failUpdate makes Update on the named table fail.
	failUpdate string
	// failCopy makes CopyTable from the named table fail.
	failCopy string
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string]*memTable)}
}

func (m *memStore) addTable(name string, columns ...string) {
	m.tables[name] = &memTable{columns: columns}
}

func (m *memStore) addRow(table string, kv ...string) {
	row := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		row[kv[i]] = kv[i+1]
	}
	m.tables[table].rows = append(m.tables[table].rows, row)
}

func (m *memStore) column(table, col string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.tables[table].rows {
		out = append(out, r[col])
	}
	return out
}

func inScope(row map[string]string, sc *database.Scope) bool {
	if sc == nil {
		return true
	}
	if sc.Prefix {
		return strings.HasPrefix(row[sc.Column], sc.Value)
	}
	return row[sc.Column] == sc.Value
}

func (m *memStore) SelectMatching(_ context.Context, q database.SelectQuery) ([]database.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selects++
	t, ok := m.tables[q.Table]
	if !ok {
		return nil, &database.StoreError{Op: "select", Table: q.Table, Err: fmt.Errorf("table %s doesn't exist", q.Table)}
	}
	seen := map[string]bool{}
	var out []database.Row
	for _, r := range t.rows {
		v := r[q.Column]
		if !strings.Contains(v, q.Substring) || !inScope(r, q.Scope) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, database.Row{Value: v})
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, q database.UpdateQuery) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if q.Table == m.failUpdate {
		return 0, &database.StoreError{Op: "update", Table: q.Table, Err: fmt.Errorf("lock wait timeout")}
	}
	var n int64
	for _, r := range m.tables[q.Table].rows {
		if r[q.Column] == q.Old && inScope(r, q.Scope) {
			r[q.Column] = q.New
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListTables(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name := range m.tables {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) ListColumns(_ context.Context, table string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, &database.StoreError{Op: "list columns", Table: table, Err: fmt.Errorf("no such table")}
	}
	return append([]string(nil), t.columns...), nil
}

func (m *memStore) CopyTable(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if src == m.failCopy {
		return &database.StoreError{Op: "copy", Table: dst, Err: fmt.Errorf("disk full")}
	}
	t, ok := m.tables[src]
	if !ok {
		return &database.StoreError{Op: "copy", Table: dst, Err: fmt.Errorf("table %s doesn't exist", src)}
	}
	cp := &memTable{columns: append([]string(nil), t.columns...)}
	for _, r := range t.rows {
		row := make(map[string]string, len(r))
		for k, v := range r {
			row[k] = v
		}
		cp.rows = append(cp.rows, row)
	}
	m.tables[dst] = cp
	return nil
}
