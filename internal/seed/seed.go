// Package seed loads the initial catalog, inventory, promotions and customers
// from a YAML (or JSON) file.
package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/mesa/internal/agents/cardapio"
	"github.com/aretw0/mesa/internal/agents/crm"
	"github.com/aretw0/mesa/internal/agents/estoque"
	"github.com/aretw0/mesa/internal/agents/promocao"
	"gopkg.in/yaml.v3"
)

// MenuItem is a catalog entry. Available defaults to true.
type MenuItem struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Category    string  `yaml:"category" json:"category"`
	Price       float64 `yaml:"price" json:"price"`
	Available   *bool   `yaml:"available" json:"available"`
}

// StockItem is an inventory record; ID matches a menu item.
type StockItem struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Quantity  int    `yaml:"quantity" json:"quantity"`
	Unit      string `yaml:"unit" json:"unit"`
	Threshold int    `yaml:"threshold" json:"threshold"`
}

// Promotion is a campaign. Active ones are announced to the menu when seeded.
type Promotion struct {
	ID              string  `yaml:"id" json:"id"`
	Title           string  `yaml:"title" json:"title"`
	Description     string  `yaml:"description" json:"description"`
	ItemID          string  `yaml:"item_id" json:"item_id"`
	DiscountPercent float64 `yaml:"discount_percent" json:"discount_percent"`
	Active          bool    `yaml:"active" json:"active"`
}

// Customer is a CRM record.
type Customer struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Phone string `yaml:"phone" json:"phone"`
	Email string `yaml:"email" json:"email"`
}

// Data is the whole seed file.
type Data struct {
	Menu       []MenuItem  `yaml:"menu" json:"menu"`
	Inventory  []StockItem `yaml:"inventory" json:"inventory"`
	Promotions []Promotion `yaml:"promotions" json:"promotions"`
	Customers  []Customer  `yaml:"customers" json:"customers"`
}

// Load reads a seed file. Files ending in .json are parsed as JSON, anything else as YAML.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var d Data
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return &d, nil
	}
	return FromYAML(raw)
}

// FromYAML parses and validates seed data.
func FromYAML(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("invalid seed yaml: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate rejects missing or duplicate ids and negative numbers.
func (d *Data) Validate() error {
	menu := make(map[string]bool, len(d.Menu))
	for i, it := range d.Menu {
		if it.ID == "" {
			return fmt.Errorf("menu[%d]: id is required", i)
		}
		if menu[it.ID] {
			return fmt.Errorf("menu: duplicate id %s", it.ID)
		}
		if it.Price < 0 {
			return fmt.Errorf("menu %s: price must not be negative", it.ID)
		}
		menu[it.ID] = true
	}

	seen := make(map[string]bool, len(d.Inventory))
	for i, it := range d.Inventory {
		if it.ID == "" {
			return fmt.Errorf("inventory[%d]: id is required", i)
		}
		if seen[it.ID] {
			return fmt.Errorf("inventory: duplicate id %s", it.ID)
		}
		if it.Quantity < 0 || it.Threshold < 0 {
			return fmt.Errorf("inventory %s: quantity and threshold must not be negative", it.ID)
		}
		seen[it.ID] = true
	}

	seen = make(map[string]bool, len(d.Promotions))
	for i, p := range d.Promotions {
		if p.ID == "" {
			return fmt.Errorf("promotions[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("promotions: duplicate id %s", p.ID)
		}
		if p.DiscountPercent <= 0 || p.DiscountPercent > 100 {
			return fmt.Errorf("promotion %s: discount_percent must be in (0, 100]", p.ID)
		}
		if p.ItemID != "" && len(menu) > 0 && !menu[p.ItemID] {
			return fmt.Errorf("promotion %s references unknown menu item %s", p.ID, p.ItemID)
		}
		seen[p.ID] = true
	}

	seen = make(map[string]bool, len(d.Customers))
	for i, c := range d.Customers {
		if c.ID == "" {
			return fmt.Errorf("customers[%d]: id is required", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("customers: duplicate id %s", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// MenuItems converts the menu section.
func (d *Data) MenuItems() []cardapio.Item {
	out := make([]cardapio.Item, 0, len(d.Menu))
	for _, it := range d.Menu {
		available := true
		if it.Available != nil {
			available = *it.Available
		}
		out = append(out, cardapio.Item{
			ItemID:      it.ID,
			Name:        it.Name,
			Description: it.Description,
			Category:    it.Category,
			Price:       it.Price,
			Available:   available,
		})
	}
	return out
}

// StockItems converts the inventory section.
func (d *Data) StockItems() []estoque.StockItem {
	out := make([]estoque.StockItem, 0, len(d.Inventory))
	for _, it := range d.Inventory {
		out = append(out, estoque.StockItem{
			ItemID:    it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Unit:      it.Unit,
			Threshold: it.Threshold,
		})
	}
	return out
}

// PromotionList converts the promotions section.
func (d *Data) PromotionList() []promocao.Promotion {
	out := make([]promocao.Promotion, 0, len(d.Promotions))
	for _, p := range d.Promotions {
		out = append(out, promocao.Promotion{
			PromoID:         p.ID,
			Title:           p.Title,
			Description:     p.Description,
			ItemID:          p.ItemID,
			DiscountPercent: p.DiscountPercent,
			Active:          p.Active,
		})
	}
	return out
}

// CustomerList converts the customers section.
func (d *Data) CustomerList() []crm.Customer {
	out := make([]crm.Customer, 0, len(d.Customers))
	for _, c := range d.Customers {
		out = append(out, crm.Customer{
			CustomerID: c.ID,
			Name:       c.Name,
			Phone:      c.Phone,
			Email:      c.Email,
		})
	}
	return out
}
