// Package catalog holds the runtime product configuration: which store
// products are consumable points packs, which grant VIP plans, what a
// generation task costs, and the weekly reward amounts per plan. Loaded
// from a JSON file at startup and safe for concurrent reads.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pickitchen/pickitchen-backend/internal/models"
)

type Style struct {
	DrivenID string `json:"driven_id"`
	Name     string `json:"name"`
	CoverURL string `json:"cover_url"`
}

type Banner struct {
	ImageURL string `json:"image_url"`
	LinkURL  string `json:"link_url"`
}

type PointsPack struct {
	ProductID string `json:"product_id"`
	Points    int64  `json:"points"`
	Label     string `json:"label"`
}

type VipProduct struct {
	ProductID string         `json:"product_id"`
	PlanType  models.VipType `json:"plan_type"`
}

// File is the on-disk catalog shape.
type File struct {
	Styles       []Style          `json:"styles"`
	Banners      []Banner         `json:"banners"`
	PointsRules  map[string]int64 `json:"points_rules"`
	WeeklyReward map[string]int64 `json:"weekly_reward"`
	PointsPacks  []PointsPack     `json:"points_packs"`
	VipProducts  []VipProduct     `json:"vip_products"`
}

// ProductKind classifies a store product referenced by a billing event.
type ProductKind int

const (
	ProductUnknown ProductKind = iota
	ProductPointsPack
	ProductVip
)

type Catalog struct {
	mu    sync.RWMutex
	file  File
	packs map[string]PointsPack
	vips  map[string]VipProduct
}

func New(file File) *Catalog {
	c := &Catalog{}
	c.replace(file)
	return c
}

func LoadFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(file), nil
}

// Reload replaces the catalog contents from path.
func (c *Catalog) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse catalog: %w", err)
	}
	c.replace(file)
	return nil
}

func (c *Catalog) replace(file File) {
	packs := make(map[string]PointsPack, len(file.PointsPacks))
	for _, p := range file.PointsPacks {
		packs[p.ProductID] = p
	}
	vips := make(map[string]VipProduct, len(file.VipProducts))
	for _, v := range file.VipProducts {
		vips[v.ProductID] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = file
	c.packs = packs
	c.vips = vips
}

// Classify returns what kind of product an event refers to, and the
// matching pack/VIP definition when known.
func (c *Catalog) Classify(productID string) (ProductKind, *PointsPack, *VipProduct) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.packs[productID]; ok {
		return ProductPointsPack, &p, nil
	}
	if v, ok := c.vips[productID]; ok {
		return ProductVip, nil, &v
	}
	return ProductUnknown, nil, nil
}

// TaskCost returns the points price of a task type, defaulting to 200
// when the catalog does not price it.
func (c *Catalog) TaskCost(taskType string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cost, ok := c.file.PointsRules[taskType]; ok {
		return cost
	}
	return 200
}

// WeeklyRewardAmount returns the recurring grant for a plan. Amounts
// are read once per scheduler run and snapshotted into the transaction
// rows it writes.
func (c *Catalog) WeeklyRewardAmount(plan models.VipType) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if amount, ok := c.file.WeeklyReward[string(plan)]; ok {
		return amount
	}
	switch plan {
	case models.VipTypeLifetime:
		return 3000
	default:
		return 2000
	}
}

func (c *Catalog) Styles() []Style {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.file.Styles
}

func (c *Catalog) Banners() []Banner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.file.Banners
}

func (c *Catalog) PointsRules() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rules := make(map[string]int64, len(c.file.PointsRules))
	for k, v := range c.file.PointsRules {
		rules[k] = v
	}
	return rules
}

// HasStyle reports whether driven ID names a known generation style.
func (c *Catalog) HasStyle(drivenID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.file.Styles {
		if s.DrivenID == drivenID {
			return true
		}
	}
	return false
}
