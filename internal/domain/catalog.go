package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Block is a purchasable theme UI section. Price is in cents; 0 means free.
type Block struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Category string `json:"category"`
	Active   bool   `json:"active"`
}

// Catalog is the authoritative universe of installable block IDs, loaded
// once at process start. Any block ID not present here is unknown and must
// be rejected.
type Catalog struct {
	blocks []Block
	byID   map[string]Block
	hash   string
}

// NewCatalog builds a catalog from a block list. Inactive blocks are kept
// but excluded from the entitlement universe.
func NewCatalog(blocks []Block) *Catalog {
	c := &Catalog{
		blocks: blocks,
		byID:   make(map[string]Block, len(blocks)),
	}
	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		c.byID[b.ID] = b
		if b.Active {
			ids = append(ids, b.ID)
		}
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	c.hash = hex.EncodeToString(sum[:])
	return c
}

// LoadCatalog reads a catalog from a JSON file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no blocks", path)
	}
	return NewCatalog(blocks), nil
}

// DefaultCatalog returns the built-in block list, used when no catalog file
// is configured.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Block{
		{ID: "divider-block", Name: "Divider", Price: 0, Category: "layout", Active: true},
		{ID: "padding-block", Name: "Padding", Price: 0, Category: "layout", Active: true},
		{ID: "scrolling-bar", Name: "Scrolling Announcement Bar", Price: 1900, Category: "announcement", Active: true},
		{ID: "image-carousel", Name: "Image Carousel", Price: 1900, Category: "media", Active: true},
		{ID: "cart-progress", Name: "Cart Progress Bar", Price: 2400, Category: "conversion", Active: true},
		{ID: "countdown-timer", Name: "Countdown Timer", Price: 1900, Category: "conversion", Active: true},
		{ID: "testimonial-grid", Name: "Testimonial Grid", Price: 2400, Category: "social-proof", Active: true},
	})
}

// Blocks returns all active catalog blocks.
func (c *Catalog) Blocks() []Block {
	out := make([]Block, 0, len(c.blocks))
	for _, b := range c.blocks {
		if b.Active {
			out = append(out, b)
		}
	}
	return out
}

// AllIDs returns the IDs of every active block, sorted.
func (c *Catalog) AllIDs() []string {
	ids := make([]string, 0, len(c.blocks))
	for _, b := range c.blocks {
		if b.Active {
			ids = append(ids, b.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// FreeIDs returns the IDs of every active zero-price block, sorted. Free
// blocks are implicitly granted to every shop.
func (c *Catalog) FreeIDs() []string {
	var ids []string
	for _, b := range c.blocks {
		if b.Active && b.Price == 0 {
			ids = append(ids, b.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Contains reports whether id is an active catalog block.
func (c *Catalog) Contains(id string) bool {
	b, ok := c.byID[id]
	return ok && b.Active
}

// Get returns the block with the given ID.
func (c *Catalog) Get(id string) (Block, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// Hash is a fingerprint of the sorted active block-ID list. A changed hash
// means blocks were deployed since the last sync and every shop's cooldown
// must be bypassed.
func (c *Catalog) Hash() string {
	return c.hash
}
