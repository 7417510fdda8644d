// Package catalog lists the tables and columns a rewrite visits.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"site-cloner/internal/model"
)

// Table names one tenant table by suffix and the columns eligible for
// rewriting. An empty column list means the table is copied but never
// rewritten.
type Table struct {
	Suffix  string   `json:"suffix"`
	Columns []string `json:"columns"`
}

// Catalog is an ordered list of tables. Suffixes are unique.
type Catalog []Table

// Lookup finds a table by suffix.
func (c Catalog) Lookup(suffix string) (Table, bool) {
	for _, t := range c {
		if t.Suffix == suffix {
			return t, true
		}
	}
	return Table{}, false
}

// Merge returns c with every table of other applied on top: a suffix present
// in both takes other's columns at c's position, new suffixes are appended.
func (c Catalog) Merge(other Catalog) Catalog {
	out := make(Catalog, len(c), len(c)+len(other))
	copy(out, c)
	index := make(map[string]int, len(out))
	for i, t := range out {
		index[t.Suffix] = i
	}
	for _, t := range other {
		if i, ok := index[t.Suffix]; ok {
			out[i] = t
			continue
		}
		index[t.Suffix] = len(out)
		out = append(out, t)
	}
	return out
}

// Suffixes returns table suffixes in catalog order.
func (c Catalog) Suffixes() []string {
	out := make([]string, len(c))
	for i, t := range c {
		out[i] = t.Suffix
	}
	return out
}

// Rewritable drops tables with no eligible columns.
func (c Catalog) Rewritable() Catalog {
	var out Catalog
	for _, t := range c {
		if len(t.Columns) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Default is the fixed catalog of core tenant tables.
func Default() Catalog {
	return Catalog{
		{Suffix: "terms"},
		{Suffix: "termmeta"},
		{Suffix: "term_taxonomy"},
		{Suffix: "term_relationships"},
		{Suffix: "commentmeta"},
		{Suffix: "comments"},
		{Suffix: "postmeta", Columns: []string{"meta_value"}},
		{Suffix: "posts", Columns: []string{"post_content", "guid"}},
		{Suffix: "links", Columns: []string{"link_url", "link_image"}},
		{Suffix: "options", Columns: []string{"option_name", "option_value"}},
	}
}

// Schema is the part of the store Discover needs.
type Schema interface {
	ListTables(ctx context.Context, prefix string) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]string, error)
}

// Discover builds a catalog from every table carrying the tenant prefix, with
// all of their columns eligible, then lays the default catalog over it so
// core tables keep their curated column lists.
//
// When the tenant is the main site its prefix is the network base prefix, so
// every numbered tenant's tables (wp_2_posts under wp_) match as well; they
// are skipped when nested is non-nil and reports them.
func Discover(ctx context.Context, schema Schema, tenant model.Tenant, nested func(table string) bool) (Catalog, error) {
	tables, err := schema.ListTables(ctx, tenant.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list tables for %s: %w", tenant.Prefix, err)
	}
	sort.Strings(tables)

	var found Catalog
	for _, name := range tables {
		if !strings.HasPrefix(name, tenant.Prefix) || (nested != nil && nested(name)) {
			continue
		}
		cols, err := schema.ListColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("list columns for %s: %w", name, err)
		}
		found = append(found, Table{Suffix: strings.TrimPrefix(name, tenant.Prefix), Columns: cols})
	}
	return found.Merge(Default()), nil
}

// OtherTenantTable reports tables of numbered tenants nested under prefix,
// such as wp_2_posts under the base prefix wp_. Tables like wp_2fa_tokens
// that merely start with a digit are not reported.
func OtherTenantTable(prefix string) func(string) bool {
	return func(table string) bool {
		rest := strings.TrimPrefix(table, prefix)
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		return i > 0 && i < len(rest) && rest[i] == '_'
	}
}

// Match selects how a Scope compares its column.
type Match int

const (
	// MatchExact compares with equality.
	MatchExact Match = iota
	// MatchPrefix compares with an escaped LIKE 'value%'.
	MatchPrefix
)

// Scope restricts a global table's rows to the tenant being rewritten.
type Scope struct {
	Column string
	Match  Match
	Value  string
}

// GlobalTable is a network-wide table whose rows are partly owned by tenants.
type GlobalTable struct {
	Name    string
	Columns []string
	Scope   Scope
}

// DefaultGlobal returns the network tables that carry tenant data: user meta
// keyed by the tenant prefix and blog meta keyed by the site id.
func DefaultGlobal(basePrefix string, tenant model.Tenant) []GlobalTable {
	return []GlobalTable{
		{
			Name:    basePrefix + "usermeta",
			Columns: []string{"meta_value"},
			Scope:   Scope{Column: "meta_key", Match: MatchPrefix, Value: tenant.Prefix},
		},
		{
			Name:    basePrefix + "blogmeta",
			Columns: []string{"meta_value"},
			Scope:   Scope{Column: "blog_id", Match: MatchExact, Value: fmt.Sprint(tenant.SiteID)},
		},
	}
}
