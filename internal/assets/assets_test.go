package assets

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"site-cloner/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	mainSite = model.Tenant{SiteID: 1, Prefix: "wp_"}
	site2    = model.Tenant{SiteID: 2, Prefix: "wp_2_"}
	site5    = model.Tenant{SiteID: 5, Prefix: "wp_5_"}
)

func TestLayout(t *testing.T) {
	l := Layout{MainSiteID: 1}
	assert.Equal(t, "", l.Dir(1))
	assert.Equal(t, "sites/5", l.Dir(5))
	assert.Equal(t, "https://a.example/wp-content/uploads", l.URL("https://a.example/", 1))
	assert.Equal(t, "https://a.example/shop/wp-content/uploads/sites/5", l.URL("https://a.example/shop", 5))

	custom := Layout{UploadsPath: "/files/", MainSiteID: 1}
	assert.Equal(t, "https://a.example/files/sites/2", custom.URL("https://a.example", 2))
}

func writeFile(t *testing.T, fs afero.Fs, name, body string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
}

func TestFSCopierFromNumberedSite(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/uploads/sites/2/2024/01/a.png", "png")
	writeFile(t, fs, "/uploads/sites/2/2024/02/b.pdf", "pdf")

	c := NewFSCopier(fs, "/uploads", Layout{MainSiteID: 1}, nil)
	n, err := c.CopyUploads(context.Background(), site2, site5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := afero.ReadFile(fs, "/uploads/sites/5/2024/01/a.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestFSCopierFromMainSiteSkipsOtherTenants(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/uploads/2024/01/logo.png", "logo")
	writeFile(t, fs, "/uploads/sites/2/2024/01/a.png", "other tenant")

	c := NewFSCopier(fs, "/uploads", Layout{MainSiteID: 1}, nil)
	n, err := c.CopyUploads(context.Background(), mainSite, site5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := afero.Exists(fs, "/uploads/sites/5/2024/01/logo.png")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = afero.Exists(fs, "/uploads/sites/5/sites/2/2024/01/a.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFSCopierMissingSource(t *testing.T) {
	c := NewFSCopier(afero.NewMemMapFs(), "/uploads", Layout{MainSiteID: 1}, nil)
	n, err := c.CopyUploads(context.Background(), site2, site5)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type memBucket struct {
	mu      sync.Mutex
	objects map[string]string
	failOn  string
}

func (b *memBucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *memBucket) Copy(_ context.Context, src, dst string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if src == b.failOn {
		return errors.New("access denied")
	}
	b.objects[dst] = b.objects[src]
	return nil
}

func TestBucketCopier(t *testing.T) {
	bucket := &memBucket{objects: map[string]string{
		"wp-content/uploads/2024/logo.png":          "logo",
		"wp-content/uploads/sites/2/2024/a.png":     "a",
		"wp-content/uploads/sites/2/":               "",
		"wp-content/uploads/sites/21/2024/other.png": "other",
	}}
	c := NewBucketCopier(bucket, "wp-content/uploads", Layout{MainSiteID: 1}, 2, nil)

	n, err := c.CopyUploads(context.Background(), site2, site5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "a", bucket.objects["wp-content/uploads/sites/5/2024/a.png"])
	_, leaked := bucket.objects["wp-content/uploads/sites/5/2024/other.png"]
	assert.False(t, leaked, "sites/21 is not under sites/2/")

	n, err = c.CopyUploads(context.Background(), mainSite, model.Tenant{SiteID: 7, Prefix: "wp_7_"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "other tenants' directories are skipped")
	assert.Equal(t, "logo", bucket.objects["wp-content/uploads/sites/7/2024/logo.png"])
}

func TestBucketCopierError(t *testing.T) {
	bucket := &memBucket{
		objects: map[string]string{"u/sites/2/x": "x", "u/sites/2/y": "y"},
		failOn:  "u/sites/2/y",
	}
	c := NewBucketCopier(bucket, "u", Layout{MainSiteID: 1}, 4, nil)
	_, err := c.CopyUploads(context.Background(), site2, site5)
	assert.ErrorContains(t, err, "access denied")
}

func TestNewBackends(t *testing.T) {
	c, err := New(context.Background(), Config{}, Layout{}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = New(context.Background(), Config{Backend: "fs"}, Layout{}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Backend: "ftp"}, Layout{}, nil)
	assert.ErrorContains(t, err, "unknown assets backend")

	_, err = New(context.Background(), Config{Backend: "minio"}, Layout{}, nil)
	assert.ErrorContains(t, err, "endpoint is required")

	c, err = New(context.Background(), Config{Backend: "minio", MinIO: MinIOConfig{Endpoint: "localhost:9000", Bucket: "media"}}, Layout{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &BucketCopier{}, c)
}
