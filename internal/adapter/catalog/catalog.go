// Package catalog serves the votable items from a YAML file loaded once at
// startup.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/pscheid92/rulehub/internal/domain"
	"gopkg.in/yaml.v3"
)

type file struct {
	Items []domain.Item `yaml:"items" validate:"dive"`
}

// Catalog is an immutable, in-memory domain.Catalog.
type Catalog struct {
	items []domain.Item
	byID  map[string]int
}

var _ domain.Catalog = (*Catalog)(nil)

func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a catalog document. Unknown fields and
// duplicate item IDs are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc file
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if err := validator.New().Struct(doc); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	byID := make(map[string]int, len(doc.Items))
	for i, item := range doc.Items {
		if prev, dup := byID[item.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %q (entries %d and %d)", item.ID, prev+1, i+1)
		}
		byID[item.ID] = i
	}

	return &Catalog{items: doc.Items, byID: byID}, nil
}

func (c *Catalog) Get(_ context.Context, id string) (*domain.Item, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	item := c.items[i]
	item.Tags = slices.Clone(item.Tags)
	return &item, nil
}

func (c *Catalog) List(_ context.Context) ([]domain.Item, error) {
	out := make([]domain.Item, len(c.items))
	for i, item := range c.items {
		item.Tags = slices.Clone(item.Tags)
		out[i] = item
	}
	return out, nil
}

func (c *Catalog) Len() int {
	return len(c.items)
}
