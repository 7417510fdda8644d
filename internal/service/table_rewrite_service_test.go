package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"site-cloner/internal/catalog"
	"site-cloner/internal/codec"
	"site-cloner/internal/database"
	"site-cloner/internal/model"
	"site-cloner/internal/rewrite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	oldIdentity = model.Identity{Prefix: "wp_2_", BaseURL: "https://a.example", AssetURL: "https://a.example/files"}
	newIdentity = model.Identity{Prefix: "wp_5_", BaseURL: "https://b.example", AssetURL: "https://b.example/files"}
	destTenant  = model.Tenant{SiteID: 5, NetworkID: 1, Prefix: "wp_5_"}
)

const brokenBlob = `a:1:{s:3:"url";s:99:"https://a.example";}`

func widgetBlob(base, assets string) string {
	return codec.Encode(codec.Map{
		{Key: codec.String("image"), Value: codec.String(assets + "/x.png")},
		{Key: codec.String("link"), Value: codec.String(base + "/page")},
		{Key: codec.String("count"), Value: codec.NewInt(2)},
	})
}

func rewriteFixture() *memStore {
	s := newMemStore()
	s.addTable("wp_5_options", "option_id", "option_name", "option_value")
	s.addRow("wp_5_options", "option_name", "siteurl", "option_value", "https://a.example")
	s.addRow("wp_5_options", "option_name", "wp_2_user_roles", "option_value", `a:1:{s:13:"administrator";b:1;}`)
	s.addRow("wp_5_options", "option_name", "widget", "option_value", widgetBlob("https://a.example", "https://a.example/files"))
	s.addRow("wp_5_options", "option_name", "broken", "option_value", brokenBlob)

	s.addTable("wp_5_posts", "ID", "post_content", "guid")
	s.addRow("wp_5_posts", "post_content", "see https://a.example/files/x.png", "guid", "https://a.example/?p=1")

	s.addTable("wp_usermeta", "umeta_id", "user_id", "meta_key", "meta_value")
	s.addRow("wp_usermeta", "user_id", "1", "meta_key", "wp_5_settings", "meta_value", "https://a.example/page")
	s.addRow("wp_usermeta", "user_id", "1", "meta_key", "wp_2_settings", "meta_value", "https://a.example/page")

	s.addTable("wp_blogmeta", "meta_id", "blog_id", "meta_key", "meta_value")
	s.addRow("wp_blogmeta", "blog_id", "5", "meta_key", "home", "meta_value", "https://a.example")
	s.addRow("wp_blogmeta", "blog_id", "2", "meta_key", "home", "meta_value", "https://a.example")
	return s
}

var fixtureCatalog = catalog.Catalog{
	{Suffix: "options", Columns: []string{"option_name", "option_value"}},
	{Suffix: "posts", Columns: []string{"post_content", "guid"}},
	{Suffix: "terms"},
}

func assertRewritten(t *testing.T, s *memStore) {
	t.Helper()
	assert.Equal(t, []string{"siteurl", "wp_5_user_roles", "widget", "broken"}, s.column("wp_5_options", "option_name"))
	assert.Equal(t, []string{
		"https://b.example",
		`a:1:{s:13:"administrator";b:1;}`,
		widgetBlob("https://b.example", "https://b.example/files"),
		brokenBlob,
	}, s.column("wp_5_options", "option_value"))
	assert.Equal(t, []string{"see https://b.example/files/x.png"}, s.column("wp_5_posts", "post_content"))
	assert.Equal(t, []string{"https://b.example/?p=1"}, s.column("wp_5_posts", "guid"))
	assert.Equal(t, []string{"https://b.example/page", "https://a.example/page"}, s.column("wp_usermeta", "meta_value"))
	assert.Equal(t, []string{"https://b.example", "https://a.example"}, s.column("wp_blogmeta", "meta_value"))
}

func TestRewriteTables(t *testing.T) {
	store := rewriteFixture()
	svc := NewTableRewriteService(store, TableRewriteOptions{}, nil, nil)

	report, err := svc.RewriteTables(context.Background(), destTenant, oldIdentity, newIdentity,
		fixtureCatalog, catalog.DefaultGlobal("wp_", destTenant))
	require.NoError(t, err)

	assertRewritten(t, store)
	assert.Equal(t, 4, report.TablesProcessed)
	assert.Equal(t, 10, report.RowsUpdated)
	require.Len(t, report.RowsFailed, 1)
	assert.Equal(t, "wp_5_options", report.RowsFailed[0].Table)
	assert.Equal(t, "option_value", report.RowsFailed[0].Column)
	assert.Equal(t, brokenBlob, report.RowsFailed[0].Key)
	assert.ErrorIs(t, report.RowsFailed[0].Err, codec.ErrMalformed)
	assert.Len(t, report.Pairs, 4)
	assert.False(t, report.FinishedAt.IsZero())
}

func TestRewriteTablesIsIdempotent(t *testing.T) {
	store := rewriteFixture()
	svc := NewTableRewriteService(store, TableRewriteOptions{}, nil, nil)
	global := catalog.DefaultGlobal("wp_", destTenant)

	_, err := svc.RewriteTables(context.Background(), destTenant, oldIdentity, newIdentity, fixtureCatalog, global)
	require.NoError(t, err)

	again, err := svc.RewriteTables(context.Background(), destTenant, oldIdentity, newIdentity, fixtureCatalog, global)
	require.NoError(t, err)
	assert.Zero(t, again.RowsUpdated)
	assertRewritten(t, store)
}

func TestRewriteTablesConcurrent(t *testing.T) {
	store := rewriteFixture()
	for i := 0; i < 50; i++ {
		store.addRow("wp_5_posts",
			"post_content", "https://a.example/files/"+string(rune('a'+i%26))+string(rune('a'+i/26))+".png",
			"guid", "https://a.example/?p=x")
	}
	svc := NewTableRewriteService(store, TableRewriteOptions{Workers: 4, UpdatesPerSecond: 10000, Burst: 100}, nil, nil)

	report, err := svc.RewriteTables(context.Background(), destTenant, oldIdentity, newIdentity,
		fixtureCatalog, catalog.DefaultGlobal("wp_", destTenant))
	require.NoError(t, err)
	assert.Len(t, report.RowsFailed, 1)

	for _, v := range store.column("wp_5_posts", "post_content") {
		assert.NotContains(t, v, "a.example")
		assert.Contains(t, v, "https://b.example/files/")
	}
	for _, v := range store.column("wp_5_posts", "guid") {
		assert.Contains(t, v, "https://b.example/?p=")
	}
}

func TestRewriteTablesRestoresPlaceholder(t *testing.T) {
	store := newMemStore()
	store.addTable("wp_5_posts", "ID", "post_content", "guid")
	store.addRow("wp_5_posts",
		"post_content", "old https://a.example/files/a.png new https://b.example/files/c.png",
		"guid", "https://b.example/?p=1")
	svc := NewTableRewriteService(store, TableRewriteOptions{}, nil, nil)

	posts := catalog.Catalog{{Suffix: "posts", Columns: []string{"post_content"}}}
	report, err := svc.RewriteTables(context.Background(), destTenant, oldIdentity, newIdentity, posts, nil)
	require.NoError(t, err)
	assert.Empty(t, report.RowsFailed)
	assert.Equal(t,
		[]string{"old https://b.example/files/a.png new https://b.example/files/c.png"},
		store.column("wp_5_posts", "post_content"))
}

func TestRewriteTablesStopsOnStoreError(t *testing.T) {
	store := rewriteFixture()
	store.failUpdate = "wp_5_posts"
	svc := NewTableRewriteService(store, TableRewriteOptions{}, nil, nil)

	report, err := svc.RewriteTables(context.Background(), destTenant, oldIdentity, newIdentity,
		fixtureCatalog, catalog.DefaultGlobal("wp_", destTenant))
	require.Error(t, err)

	var storeErr *database.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "wp_5_posts", storeErr.Table)

	require.NotNil(t, report, "partial report is returned")
	assert.Equal(t, 1, report.TablesProcessed)
	assert.Equal(t, 5, report.RowsUpdated)
	assert.Equal(t, []string{"https://a.example/page", "https://a.example/page"}, store.column("wp_usermeta", "meta_value"),
		"tables after the failure are untouched")
}

func TestRewriteTablesRejectsBadPlan(t *testing.T) {
	store := rewriteFixture()
	svc := NewTableRewriteService(store, TableRewriteOptions{}, nil, nil)

	report, err := svc.RewriteTables(context.Background(), destTenant, oldIdentity, oldIdentity, fixtureCatalog, nil)
	assert.ErrorIs(t, err, model.ErrInvalidIdentity)
	assert.Nil(t, report)
	assert.Zero(t, store.selects, "no table is scanned")
}

func TestRewriteTablesCancelled(t *testing.T) {
	store := rewriteFixture()
	svc := NewTableRewriteService(store, TableRewriteOptions{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := svc.RewriteTables(ctx, destTenant, oldIdentity, newIdentity, fixtureCatalog, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.RowsUpdated)
	assert.Zero(t, store.updates)
}

func TestRewriteTablesKeyCollisionPolicy(t *testing.T) {
	store := newMemStore()
	store.addTable("wp_5_options", "option_name", "option_value")
	blob := codec.Encode(codec.Map{
		{Key: codec.String("wp_2_roles"), Value: codec.String("old")},
		{Key: codec.String("wp_5_roles"), Value: codec.String("new")},
	})
	store.addRow("wp_5_options", "option_name", "roles", "option_value", blob)
	cat := catalog.Catalog{{Suffix: "options", Columns: []string{"option_value"}}}

	svc := NewTableRewriteService(store, TableRewriteOptions{Rewrite: rewrite.Options{KeyCollision: rewrite.FailOnCollision}}, nil, nil)
	report, err := svc.RewriteTables(context.Background(), destTenant, oldIdentity, newIdentity, cat, nil)
	require.NoError(t, err)
	require.Len(t, report.RowsFailed, 1)
	assert.ErrorIs(t, report.RowsFailed[0].Err, rewrite.ErrKeyCollision)
	assert.Equal(t, []string{blob}, store.column("wp_5_options", "option_value"))

	svc = NewTableRewriteService(store, TableRewriteOptions{}, nil, nil)
	report, err = svc.RewriteTables(context.Background(), destTenant, oldIdentity, newIdentity, cat, nil)
	require.NoError(t, err)
	assert.Empty(t, report.RowsFailed)
	assert.Equal(t, []string{`a:1:{s:10:"wp_5_roles";s:3:"new";}`}, store.column("wp_5_options", "option_value"))
}

type countingRecorder struct {
	mu       sync.Mutex
	scanned  int
	updated  int64
	failures map[string]int
	tables   []string
}

func (r *countingRecorder) RowsScanned(_ string, n int) {
	r.mu.Lock()
	r.scanned += n
	r.mu.Unlock()
}

func (r *countingRecorder) RowUpdated(_ string, n int64) {
	r.mu.Lock()
	r.updated += n
	r.mu.Unlock()
}

func (r *countingRecorder) RowFailed(_ string, reason string) {
	r.mu.Lock()
	r.failures[reason]++
	r.mu.Unlock()
}

func (r *countingRecorder) TableFinished(table string, _ time.Duration) {
	r.mu.Lock()
	r.tables = append(r.tables, table)
	r.mu.Unlock()
}

func TestRewriteTablesRecorder(t *testing.T) {
	rec := &countingRecorder{failures: map[string]int{}}
	svc := NewTableRewriteService(rewriteFixture(), TableRewriteOptions{}, nil, rec)

	report, err := svc.RewriteTables(context.Background(), destTenant, oldIdentity, newIdentity,
		fixtureCatalog, catalog.DefaultGlobal("wp_", destTenant))
	require.NoError(t, err)

	assert.Equal(t, report.RowsScanned, rec.scanned)
	assert.Equal(t, int64(report.RowsUpdated), rec.updated)
	assert.Equal(t, map[string]int{"codec": 1}, rec.failures)
	assert.Equal(t, []string{"wp_5_options", "wp_5_posts", "wp_usermeta", "wp_blogmeta"}, rec.tables)
}
