package rewrite

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-cloner/internal/codec"
	"site-cloner/internal/model"
	"site-cloner/internal/plan"
)

var (
	oldID = model.Identity{Prefix: "wp_2_", BaseURL: "https://a.example", AssetURL: "https://a.example/files"}
	newID = model.Identity{Prefix: "wp_5_", BaseURL: "https://b.example", AssetURL: "https://b.example/files"}
)

func overlapPlan(t *testing.T) plan.Pairs {
	t.Helper()
	pairs, err := plan.NewBuilder().Build(oldID, newID)
	require.NoError(t, err)
	return pairs
}

func TestReplaceStringSkipsWhenTargetPresent(t *testing.T) {
	pairs := []plan.Pair{{From: "wp_", To: "wp_5_"}}

	assert.Equal(t, "wp_5_options", ReplaceString("wp_options", pairs))
	assert.Equal(t, "wp_5_options wp_posts", ReplaceString("wp_5_options wp_posts", pairs),
		"a string already holding the target is left alone")
	assert.Equal(t, "", ReplaceString("", pairs))
}

func TestOverlapScenario(t *testing.T) {
	r := New(Options{})
	in := codec.Encode(codec.List{
		codec.String("https://a.example/files/x.png"),
		codec.String("https://a.example/page"),
		codec.String("wp_2_options"),
	})

	out, err := r.RewriteText(in, overlapPlan(t))
	require.NoError(t, err)

	want := codec.Encode(codec.List{
		codec.String("https://b.example/files/x.png"),
		codec.String("https://b.example/page"),
		codec.String("wp_5_options"),
	})
	assert.Equal(t, want, out)
}

func TestOverlapScenarioPairByPair(t *testing.T) {
	// The table driver applies one pair per scan; the result must match.
	r := New(Options{})
	text := codec.Encode(codec.List{
		codec.String("https://a.example/files/x.png"),
		codec.String("https://a.example/page"),
		codec.String("wp_2_options"),
	})
	for _, p := range overlapPlan(t) {
		var err error
		text, err = r.RewriteText(text, []plan.Pair{p})
		require.NoError(t, err)
	}
	v, err := codec.Decode(text)
	require.NoError(t, err)
	assert.Equal(t, codec.List{
		codec.String("https://b.example/files/x.png"),
		codec.String("https://b.example/page"),
		codec.String("wp_5_options"),
	}, v)
}

func TestMixedStringNeedsPlaceholder(t *testing.T) {
	r := New(Options{})
	in := "see https://a.example/files/x.png on https://a.example/page"

	out, err := r.RewriteText(in, overlapPlan(t))
	require.NoError(t, err)
	assert.Equal(t, "see https://b.example/files/x.png on https://b.example/page", out)
}

func TestPlaceholderRestoredWhenTargetAlreadyPresent(t *testing.T) {
	r := New(Options{})
	in := "old https://a.example/files/a.png new https://b.example/files/c.png"
	want := "old https://b.example/files/a.png new https://b.example/files/c.png"
	pairs := overlapPlan(t)

	whole, err := r.RewriteText(in, pairs)
	require.NoError(t, err)
	assert.Equal(t, want, whole)

	text := in
	for _, p := range pairs {
		text, err = r.RewriteText(text, []plan.Pair{p})
		require.NoError(t, err)
	}
	assert.Equal(t, want, text)
	assert.NotContains(t, text, "__SITE_CLONER_")
}

func TestReplaceStringForcedPair(t *testing.T) {
	pairs := []plan.Pair{{From: "@@", To: "https://b.example/files", Force: true}}
	assert.Equal(t,
		"https://b.example/files/a.png https://b.example/files/c.png",
		ReplaceString("@@/a.png https://b.example/files/c.png", pairs))
}

func TestRewriteIsIdempotent(t *testing.T) {
	r := New(Options{})
	pairs := overlapPlan(t)
	in := codec.Encode(codec.Map{
		{Key: codec.String("siteurl"), Value: codec.String("https://a.example")},
		{Key: codec.String("upload"), Value: codec.String("https://a.example/files/2024/01")},
		{Key: codec.String("wp_2_user_roles"), Value: codec.List{codec.String("wp_2_editor")}},
	})

	once, err := r.RewriteText(in, pairs)
	require.NoError(t, err)
	twice, err := r.RewriteText(once, pairs)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestRewriteNestedLeafOnly(t *testing.T) {
	r := New(Options{})
	in := codec.Map{
		{Key: codec.String("level1"), Value: codec.Map{
			{Key: codec.String("sibling"), Value: codec.String("keep me")},
			{Key: codec.String("level2"), Value: codec.Map{
				{Key: codec.String("level3"), Value: codec.String("https://a.example/about")},
				{Key: codec.String("count"), Value: codec.NewInt(3)},
			}},
		}},
		{Key: codec.String("other"), Value: codec.Bool(true)},
	}

	got, err := r.Rewrite(in, []plan.Pair{{From: "https://a.example", To: "https://b.example"}})
	require.NoError(t, err)

	want := codec.Map{
		{Key: codec.String("level1"), Value: codec.Map{
			{Key: codec.String("sibling"), Value: codec.String("keep me")},
			{Key: codec.String("level2"), Value: codec.Map{
				{Key: codec.String("level3"), Value: codec.String("https://b.example/about")},
				{Key: codec.String("count"), Value: codec.NewInt(3)},
			}},
		}},
		{Key: codec.String("other"), Value: codec.Bool(true)},
	}
	if diff := cmp.Diff(codec.Value(want), got); diff != "" {
		t.Errorf("unexpected rewrite (-want +got):\n%s", diff)
	}
}

func TestRewriteMapKeys(t *testing.T) {
	r := New(Options{})
	in := codec.Map{
		{Key: codec.String("wp_2_"), Value: codec.String("test")},
		{Key: codec.String("wp_2_2_"), Value: codec.String("another test")},
		{Key: codec.NewInt(0), Value: codec.String("wp_2_")},
	}

	got, err := r.Rewrite(in, []plan.Pair{{From: "wp_2_", To: "wp_5_"}})
	require.NoError(t, err)

	m := got.(codec.Map)
	require.Equal(t, 3, m.Len(), "distinct keys must not be lost")
	assert.Equal(t, codec.String("wp_5_"), m[0].Key)
	assert.Equal(t, codec.String("wp_5_2_"), m[1].Key)
	assert.Equal(t, codec.NewInt(0), m[2].Key)
	assert.Equal(t, codec.String("wp_5_"), m[2].Value)
}

func TestKeyCollisionLastWriteWins(t *testing.T) {
	r := New(Options{KeyCollision: LastWriteWins})
	in := codec.Map{
		{Key: codec.String("wp_2_roles"), Value: codec.String("first")},
		{Key: codec.String("plain"), Value: codec.String("middle")},
		{Key: codec.String("wp_5_roles"), Value: codec.String("second")},
	}

	got, err := r.Rewrite(in, []plan.Pair{{From: "wp_2_", To: "wp_5_"}})
	require.NoError(t, err)

	m := got.(codec.Map)
	// Two original keys merge into one: documented last-write-wins.
	require.Equal(t, 2, m.Len())
	assert.Equal(t, codec.Entry{Key: codec.String("wp_5_roles"), Value: codec.String("second")}, m[0])
	assert.Equal(t, codec.Entry{Key: codec.String("plain"), Value: codec.String("middle")}, m[1])
}

func TestKeyCollisionFails(t *testing.T) {
	r := New(Options{KeyCollision: FailOnCollision})
	in := codec.Encode(codec.Map{
		{Key: codec.String("wp_2_roles"), Value: codec.String("first")},
		{Key: codec.String("wp_5_roles"), Value: codec.String("second")},
	})

	out, err := r.RewriteText(in, []plan.Pair{{From: "wp_2_", To: "wp_5_"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyCollision))
	assert.Equal(t, in, out, "value is returned unchanged on failure")
}

func TestDuplicateInputKeysPreserved(t *testing.T) {
	r := New(Options{KeyCollision: FailOnCollision})
	in := `a:2:{s:1:"k";s:5:"wp_2_";s:1:"k";s:1:"x";}`

	out, err := r.RewriteText(in, []plan.Pair{{From: "wp_2_", To: "wp_5_"}})
	require.NoError(t, err)
	assert.Equal(t, `a:2:{s:1:"k";s:5:"wp_5_";s:1:"k";s:1:"x";}`, out)
}

func TestVisibilityMarkerRewritten(t *testing.T) {
	r := New(Options{})
	privateKey := codec.FieldName{Visibility: codec.Private, Class: "wp_2_Settings", Name: "url"}.String()
	in := codec.Encode(codec.Object{
		Class: "Child_Settings",
		Fields: []codec.Entry{
			{Key: codec.String(privateKey), Value: codec.String("https://a.example")},
		},
	})

	out, err := r.RewriteText(in, overlapPlan(t))
	require.NoError(t, err)

	v, err := codec.Decode(out)
	require.NoError(t, err)
	obj, ok := v.(codec.Object)
	require.True(t, ok)
	assert.Equal(t, "Child_Settings", obj.Class)
	require.Len(t, obj.Fields, 1)

	field := codec.ParseFieldName(string(obj.Fields[0].Key.(codec.String)))
	assert.Equal(t, codec.FieldName{Visibility: codec.Private, Class: "wp_5_Settings", Name: "url"}, field)
	assert.Equal(t, codec.String("https://b.example"), obj.Fields[0].Value)
}

func TestPreserveFieldNames(t *testing.T) {
	r := New(Options{PreserveFieldNames: true})
	in := codec.Object{
		Class: "stdClass",
		Fields: []codec.Entry{
			{Key: codec.String("wp_2_"), Value: codec.String("wp_2_value")},
		},
	}

	got, err := r.Rewrite(in, []plan.Pair{{From: "wp_2_", To: "wp_5_"}})
	require.NoError(t, err)
	obj := got.(codec.Object)
	assert.Equal(t, codec.String("wp_2_"), obj.Fields[0].Key)
	assert.Equal(t, codec.String("wp_5_value"), obj.Fields[0].Value)
}

func TestDoubleEncoding(t *testing.T) {
	r := New(Options{})
	inner := codec.Encode(codec.Map{
		{Key: codec.String("url"), Value: codec.String("https://a.example/page")},
		{Key: codec.String("title"), Value: codec.String("Home")},
	})
	outer := codec.Encode(codec.List{codec.String(inner)})

	out, err := r.RewriteText(outer, []plan.Pair{{From: "https://a.example", To: "https://b.example"}})
	require.NoError(t, err)

	v, err := codec.Decode(out)
	require.NoError(t, err)
	list, ok := v.(codec.List)
	require.True(t, ok)
	require.Len(t, list, 1)

	innerText, ok := list[0].(codec.String)
	require.True(t, ok, "inner layer stays encoded")
	iv, err := codec.Decode(string(innerText))
	require.NoError(t, err)
	url, ok := iv.(codec.Map).Get("url")
	require.True(t, ok)
	assert.Equal(t, codec.String("https://b.example/page"), url)
}

func TestSerializedString(t *testing.T) {
	r := New(Options{})
	inner := codec.Encode(codec.List{codec.String("wp_2_carousel")})
	in := codec.Encode(codec.String(inner))

	out, err := r.RewriteText(in, []plan.Pair{{From: "wp_2_", To: "wp_5_"}})
	require.NoError(t, err)
	assert.Equal(t, codec.Encode(codec.String(codec.Encode(codec.List{codec.String("wp_5_carousel")}))), out)
}

func TestLayerLimit(t *testing.T) {
	r := New(Options{MaxLayers: 2})
	text := codec.Encode(codec.String("wp_2_x"))
	text = codec.Encode(codec.String(text))
	text = codec.Encode(codec.String(text))

	out, err := r.RewriteText(text, []plan.Pair{{From: "wp_2_", To: "wp_5_"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyLayers)
	assert.Equal(t, text, out)

	out, err = New(Options{}).RewriteText(text, []plan.Pair{{From: "wp_2_", To: "wp_5_"}})
	require.NoError(t, err)
	assert.Contains(t, out, "wp_5_x")
}

func TestMalformedLeftUnchanged(t *testing.T) {
	r := New(Options{})
	in := `a:1:{s:3:"url";s:99:"https://a.example";}`

	out, err := r.RewriteText(in, []plan.Pair{{From: "https://a.example", To: "https://b.example"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrMalformed)
	assert.Equal(t, in, out)
}

func TestNonStringScalarsUntouched(t *testing.T) {
	r := New(Options{})
	in := codec.List{codec.NewInt(2), codec.NewFloat(2.5), codec.Null{}, codec.Bool(false), codec.Enum("Suit:wp_2_")}

	got, err := r.Rewrite(in, []plan.Pair{{From: "2", To: "5"}})
	require.NoError(t, err)
	assert.Equal(t, codec.Value(in), got)
}

func TestParseKeyCollisionPolicy(t *testing.T) {
	p, err := ParseKeyCollisionPolicy("error")
	require.NoError(t, err)
	assert.Equal(t, FailOnCollision, p)

	p, err = ParseKeyCollisionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LastWriteWins, p)

	_, err = ParseKeyCollisionPolicy("shrug")
	assert.Error(t, err)
}
