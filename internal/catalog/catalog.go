// Package catalog holds the pizza menu.
//
// Menus arrive from two places: the order API's menu endpoint (JSON, see
// DecodeMenu) and CUE definition files read by the development order service
// (see Load). Both paths NFC-normalise ids and names so an id typed on one
// keyboard matches the same id loaded from a file.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/papapizza/internal/cart"
	"github.com/roach88/papapizza/internal/order"
)

// Tag is a menu label such as "Vegetarian".
type Tag struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	BgColour string `json:"bgColour,omitempty"`
}

// UnmarshalJSON accepts the tag object or a bare title string.
func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var title string
		if err := json.Unmarshal(data, &title); err != nil {
			return err
		}
		*t = Tag{Title: title}
		return nil
	}
	type plain Tag
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Tag(p)
	return nil
}

// Item is one menu entry.
type Item struct {
	ID    string          `json:"id"`
	Code  string          `json:"code,omitempty"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Tags  []Tag           `json:"tags,omitempty"`
}

// UnmarshalJSON accepts ids encoded as strings or numbers.
func (it *Item) UnmarshalJSON(data []byte) error {
	var w struct {
		ID    json.RawMessage `json:"id"`
		Code  string          `json:"code"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Tags  []Tag           `json:"tags"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*it = Item{Code: w.Code, Name: w.Name, Price: w.Price, Tags: w.Tags}
	if len(w.ID) > 0 && string(w.ID) != "null" {
		id, err := order.DecodeID(w.ID)
		if err != nil {
			return err
		}
		it.ID = id
	}
	return nil
}

// Catalog is an ordered, immutable menu indexed by item id.
type Catalog struct {
	items []Item
	byID  map[string]int
}

// New builds a catalog. Ids and names are NFC-normalised; a repeated id
// replaces the earlier entry in place.
func New(items []Item) *Catalog {
	c := &Catalog{
		items: make([]Item, 0, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for _, it := range items {
		it.ID = order.NormalizeID(it.ID)
		it.Name = norm.NFC.String(it.Name)
		if it.Tags != nil {
			it.Tags = append([]Tag(nil), it.Tags...)
		}
		if i, ok := c.byID[it.ID]; ok {
			c.items[i] = it
			continue
		}
		c.byID[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c
}

// Items returns a copy of the menu in catalog order.
func (c *Catalog) Items() []Item {
	if c == nil {
		return nil
	}
	return append([]Item(nil), c.items...)
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Lookup returns the item with the given id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	i, ok := c.byID[order.NormalizeID(id)]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Contains reports whether id is on the menu.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.Lookup(id)
	return ok
}

// DecodeMenu reads a menu response: {"items": [...]} or a bare array.
func DecodeMenu(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	data = bytes.TrimSpace(data)

	var items []Item
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &items)
	} else {
		var env struct {
			Items *[]Item `json:"items"`
		}
		err = json.Unmarshal(data, &env)
		if err == nil && env.Items == nil {
			return nil, fmt.Errorf("%w: menu has no items field", order.ErrMalformedResponse)
		}
		if env.Items != nil {
			items = *env.Items
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: menu: %v", order.ErrMalformedResponse, err)
	}
	for i, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: menu item %d has no id", order.ErrMalformedResponse, i)
		}
	}
	return New(items), nil
}

// MarshalJSON encodes the catalog as {"items": [...]}.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	items := c.Items()
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(struct {
		Items []Item `json:"items"`
	}{items})
}

// Entry is a menu item paired with its quantity in the current cart.
type Entry struct {
	Item
	Quantity int `json:"quantity"`
}

// Merge pairs every catalog item with its cart quantity, defaulting to 0.
// The result follows catalog order; cart lines for items not on the menu
// are left out.
func Merge(c *Catalog, s cart.State) []Entry {
	items := c.Items()
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		out = append(out, Entry{Item: it, Quantity: s.Quantity(it.ID)})
	}
	return out
}
