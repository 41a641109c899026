package models

import (
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Course is a purchasable learning item referenced by payments and
// enrollments. Course authoring and progress tracking live elsewhere.
type Course struct {
	Base
	Title    string  `gorm:"type:varchar(255);not null" json:"title"`
	Category string  `gorm:"type:varchar(100)" json:"category"`
	Plan     string  `gorm:"type:varchar(50)" json:"plan"`
	Price    float64 `gorm:"type:decimal(20,2);default:0" json:"price"`
	Slug     string  `gorm:"type:varchar(255);uniqueIndex" json:"slug"`
}

// BeforeCreate derives a URL slug from the title when none is set
func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if err := c.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if c.Slug == "" {
		c.Slug = slug.Make(c.Title) + "-" + c.ID.String()[:8]
	}
	return nil
}
