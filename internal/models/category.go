package models

import "time"

// Category groups transactions and fixed definitions.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"-"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Icon      string    `gorm:"size:64" json:"icon"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

// ProductType classifies account products. The seeded "interest" slug marks
// products that accrue daily interest.
type ProductType struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:64;not null" json:"name"`
	Slug string `gorm:"size:32;uniqueIndex;not null" json:"slug"`
	Icon string `gorm:"size:64" json:"icon"`
}

const ProductTypeInterest = "interest"
