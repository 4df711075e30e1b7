package domain

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text;not null;default:''"`
	Price       float64   `json:"price" gorm:"type:numeric(10,2);not null"`
	Image       *string   `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductSortField lists the columns products may be ordered by.
type ProductSortField string

const (
	SortByName      ProductSortField = "name"
	SortByPrice     ProductSortField = "price"
	SortByCreatedAt ProductSortField = "created_at"
	SortByUpdatedAt ProductSortField = "updated_at"
)

func (f ProductSortField) Valid() bool {
	switch f {
	case SortByName, SortByPrice, SortByCreatedAt, SortByUpdatedAt:
		return true
	}
	return false
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

type ProductFilter struct {
	Search    string
	SortBy    ProductSortField
	SortOrder SortOrder
}

// ProductChanges carries a partial update; nil fields are left untouched.
type ProductChanges struct {
	Name        *string
	Description *string
	Price       *float64
	Image       *string
}

func (c ProductChanges) Apply(p *Product) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.Price != nil {
		p.Price = *c.Price
	}
	if c.Image != nil {
		img := *c.Image
		p.Image = &img
	}
}
