package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityValidate(t *testing.T) {
	ok := Identity{Prefix: "wp_2_", BaseURL: "https://a.example", AssetURL: "https://a.example/files"}
	assert.NoError(t, ok.Validate())

	for _, id := range []Identity{
		{BaseURL: "x", AssetURL: "y"},
		{Prefix: "p", AssetURL: "y"},
		{Prefix: "p", BaseURL: "x"},
	} {
		assert.ErrorIs(t, id.Validate(), ErrInvalidIdentity)
	}
}

func TestTablePrefix(t *testing.T) {
	assert.Equal(t, "wp_", TablePrefix("wp_", 1, 1))
	assert.Equal(t, "wp_12_", TablePrefix("wp_", 12, 1))
	assert.Equal(t, "wp_12_posts", Tenant{SiteID: 12, Prefix: "wp_12_"}.Table("posts"))
}

func TestHomeURL(t *testing.T) {
	assert.Equal(t, "https://b.example/shop", HomeURL("https://b.example/", "/shop/"))
	assert.Equal(t, "http://b.example", HomeURL("b.example", "/"))
	assert.Equal(t, "http://b.example/a/b", HomeURL("b.example", "a/b"))
}

func TestSiteAddress(t *testing.T) {
	host, path := SiteAddress("https://b.example/", "shop")
	assert.Equal(t, "b.example", host)
	assert.Equal(t, "/shop/", path)

	host, path = SiteAddress("b.example", "")
	assert.Equal(t, "b.example", host)
	assert.Equal(t, "/", path)
}

func TestRewriteReport(t *testing.T) {
	r := NewRewriteReport()
	r.AddScanned(3)
	r.AddUpdated(2)
	r.TableDone()
	assert.False(t, r.Failed())

	r.AddFailure(RowFailure{Table: "wp_5_options", Column: "option_value", Key: "a:1:{", Err: errors.New("codec: truncated")})
	r.Finish()
	assert.True(t, r.Failed())
	assert.False(t, r.FinishedAt.Before(r.StartedAt))

	raw, err := json.Marshal(r.RowsFailed[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"table":"wp_5_options","column":"option_value","key":"a:1:{","error":"codec: truncated"}`, string(raw))
}
