package domain

import "context"

// Item is a catalog entry (a "rule") that can be voted on.
type Item struct {
	ID          string   `json:"id" yaml:"id" validate:"required,max=128,excludesall=/?#"`
	Title       string   `json:"title" yaml:"title" validate:"required,max=200"`
	Description string   `json:"description" yaml:"description" validate:"max=2000"`
	Category    string   `json:"category,omitempty" yaml:"category"`
	Tags        []string `json:"tags,omitempty" yaml:"tags" validate:"dive,required"`
	Content     string   `json:"content,omitempty" yaml:"content"`
}

// Catalog is the read-only source of votable items.
type Catalog interface {
	// Get returns ErrItemNotFound when id is unknown.
	Get(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context) ([]Item, error)
}
