package models

import "time"

// RentalCompany keeps the casing it was first registered with.
type RentalCompany struct {
	ID        int64     `json:"id" yaml:"-"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
}
