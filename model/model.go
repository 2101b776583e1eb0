package model

import (
	"time"
)

// User mirrors the Telegram account that owns tracked routes.
type User struct {
	ID        int64 `gorm:"primaryKey"` // Telegram User ID
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time

	Tracks []Track `gorm:"foreignKey:UserID"`
}

// Track is one route a user monitors for price drops.
// At most one active track exists per (UserID, Route) pair.
type Track struct {
	ID     int64 `gorm:"primaryKey"`
	UserID int64 `gorm:"index"`

	// Route is the text as the user typed it, e.g. "Москва-Сочи".
	Route       string
	Origin      string
	Destination string

	// MinPrice is the cheapest fare ever observed; nil until the
	// first successful check. It only ever decreases.
	MinPrice  *float64
	LastCheck *time.Time
	CreatedAt time.Time
	Active    bool `gorm:"default:true"`

	Observations []PriceObservation `gorm:"foreignKey:TrackID"`
}

// PriceObservation is a single recorded fare reading. Rows are
// append-only; they back the cached Track.MinPrice.
type PriceObservation struct {
	ID      int64 `gorm:"primaryKey"`
	TrackID int64 `gorm:"index"`
	Price   float64
	FoundAt time.Time `gorm:"autoCreateTime"`
}
