package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"site-cloner/internal/database"
	"site-cloner/internal/model"
)

func TestRenameTenantKeys(t *testing.T) {
	rows := []model.UserMeta{
		{UMetaID: 1, UserID: 1, MetaKey: "wp_capabilities", MetaValue: `a:1:{s:13:"administrator";b:1;}`},
		{UMetaID: 2, UserID: 1, MetaKey: "wp_user_level", MetaValue: "10"},
		{UMetaID: 3, UserID: 1, MetaKey: "wp_2_capabilities", MetaValue: `a:1:{s:6:"editor";b:1;}`},
		{UMetaID: 4, UserID: 2, MetaKey: "nickname", MetaValue: "bob"},
	}

	got := RenameTenantKeys(rows, "wp_", "wp_5_")
	assert.Equal(t, []model.UserMeta{
		{UserID: 1, MetaKey: "wp_5_capabilities", MetaValue: `a:1:{s:13:"administrator";b:1;}`},
		{UserID: 1, MetaKey: "wp_5_user_level", MetaValue: "10"},
	}, got)
}

func TestRenameTenantKeysFromNumberedSite(t *testing.T) {
	rows := []model.UserMeta{
		{UserID: 3, MetaKey: "wp_2_capabilities", MetaValue: "x"},
		{UserID: 3, MetaKey: "wp_2_user_level", MetaValue: "1"},
	}
	got := RenameTenantKeys(rows, "wp_2_", "wp_7_")
	assert.Len(t, got, 2)
	assert.Equal(t, "wp_7_capabilities", got[0].MetaKey)
	assert.Zero(t, got[0].UMetaID, "copies get fresh ids")
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `wp\_2\_`, database.EscapeLike("wp_2_"))
	assert.Equal(t, `50\%\\`, database.EscapeLike(`50%\`))
}
