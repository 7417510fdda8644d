package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-cloner/internal/model"
	"site-cloner/internal/repository"
)

type memSites struct {
	rows   map[int64]*model.Site
	nextID int64
}

func (m *memSites) GetByID(_ context.Context, id int64) (*model.Site, error) {
	if s, ok := m.rows[id]; ok {
		return s, nil
	}
	return nil, repository.ErrSiteNotFound
}

func (m *memSites) GetByAddress(_ context.Context, domain, path string) (*model.Site, error) {
	for _, s := range m.rows {
		if s.Domain == domain && s.Path == path {
			return s, nil
		}
	}
	return nil, repository.ErrSiteNotFound
}

func (m *memSites) Create(_ context.Context, s *model.Site) error {
	m.nextID++
	s.BlogID = m.nextID
	m.rows[s.BlogID] = s
	return nil
}

func (m *memSites) Delete(_ context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

func (m *memSites) Touch(context.Context, int64) error { return nil }

func TestNewSite(t *testing.T) {
	hidden := false
	site := NewSite(&model.CloneRequest{Domain: "https://b.example", Path: "shop", Public: &hidden}, Network{NetworkID: 3})
	assert.Equal(t, "b.example", site.Domain)
	assert.Equal(t, "/shop/", site.Path)
	assert.Equal(t, int64(3), site.SiteID)
	assert.Equal(t, 0, site.Public)

	site = NewSite(&model.CloneRequest{Domain: "b.example", NetworkID: 9}, Network{NetworkID: 3})
	assert.Equal(t, "/", site.Path)
	assert.Equal(t, int64(9), site.SiteID)
	assert.Equal(t, 1, site.Public)
}

func TestCreate(t *testing.T) {
	sites := &memSites{rows: map[int64]*model.Site{}, nextID: 4}
	p := NewSiteProvisioner(nil, sites, Network{BasePrefix: "wp_", MainSiteID: 1, NetworkID: 1}, nil)

	tenant, err := p.Create(context.Background(), &model.CloneRequest{Domain: "b.example", Path: "x"})
	require.NoError(t, err)
	assert.Equal(t, model.Tenant{SiteID: 5, NetworkID: 1, Prefix: "wp_5_"}, tenant)

	_, err = p.Create(context.Background(), &model.CloneRequest{Domain: "b.example", Path: "/x/"})
	assert.ErrorIs(t, err, ErrAddressTaken)
}

func TestCleanupRefusesMainSite(t *testing.T) {
	p := NewSiteProvisioner(nil, &memSites{rows: map[int64]*model.Site{}}, Network{BasePrefix: "wp_", MainSiteID: 1}, nil)
	err := p.Cleanup(context.Background(), model.Tenant{SiteID: 1, Prefix: "wp_"})
	assert.Error(t, err)
}
