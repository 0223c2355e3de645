package model

import "time"

// Course is the purchasable unit. Price is stored in minor currency units;
// a zero price means enrollment bypasses payment entirely.
type Course struct {
	ID            string // UUID
	Title         string
	Description   string
	Slug          string
	PriceCents    int64
	Currency      string
	CoverImageURL string
	DeletedAt     *time.Time // soft delete; deleted courses are not purchasable
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *Course) Free() bool {
	return c.PriceCents <= 0
}

func (c *Course) Deleted() bool {
	return c.DeletedAt != nil
}
