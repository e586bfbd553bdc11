package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickitchen/pickitchen-backend/internal/models"
)

func testCatalog() *Catalog {
	return New(File{
		Styles: []Style{
			{DrivenID: "dance_01", Name: "Dance"},
		},
		PointsRules:  map[string]int64{"emoji": 200},
		WeeklyReward: map[string]int64{"weekly": 2000, "lifetime": 3000},
		PointsPacks: []PointsPack{
			{ProductID: "points_1000", Points: 1000},
		},
		VipProducts: []VipProduct{
			{ProductID: "vip_weekly", PlanType: models.VipTypeWeekly},
			{ProductID: "vip_lifetime", PlanType: models.VipTypeLifetime},
		},
	})
}

func TestClassify(t *testing.T) {
	c := testCatalog()

	kind, pack, _ := c.Classify("points_1000")
	assert.Equal(t, ProductPointsPack, kind)
	require.NotNil(t, pack)
	assert.Equal(t, int64(1000), pack.Points)

	kind, _, vip := c.Classify("vip_lifetime")
	assert.Equal(t, ProductVip, kind)
	require.NotNil(t, vip)
	assert.Equal(t, models.VipTypeLifetime, vip.PlanType)

	kind, pack, vip = c.Classify("com.other.app.sku")
	assert.Equal(t, ProductUnknown, kind)
	assert.Nil(t, pack)
	assert.Nil(t, vip)
}

func TestTaskCostDefaults(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, int64(200), c.TaskCost("emoji"))
	assert.Equal(t, int64(200), c.TaskCost("unpriced"))
}

func TestWeeklyRewardAmounts(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, int64(2000), c.WeeklyRewardAmount(models.VipTypeWeekly))
	assert.Equal(t, int64(3000), c.WeeklyRewardAmount(models.VipTypeLifetime))

	empty := New(File{})
	assert.Equal(t, int64(2000), empty.WeeklyRewardAmount(models.VipTypeWeekly))
	assert.Equal(t, int64(3000), empty.WeeklyRewardAmount(models.VipTypeLifetime))
}

func TestHasStyle(t *testing.T) {
	c := testCatalog()
	assert.True(t, c.HasStyle("dance_01"))
	assert.False(t, c.HasStyle("nope"))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	payload := `{
		"points_rules": {"emoji": 150},
		"points_packs": [{"product_id": "points_500", "points": 500}],
		"vip_products": [{"product_id": "vip_weekly", "plan_type": "weekly"}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(150), c.TaskCost("emoji"))

	kind, pack, _ := c.Classify("points_500")
	assert.Equal(t, ProductPointsPack, kind)
	assert.Equal(t, int64(500), pack.Points)

	_, err = LoadFromFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
