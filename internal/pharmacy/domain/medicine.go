package domain

import "time"

// DefaultUnit is used when a medicine is registered without a dispensing unit.
const DefaultUnit = "tablet"

// Medicine is the local read model of a catalog entry. The engine never mutates it.
type Medicine struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Form      string    `json:"form,omitempty" db:"form"`
	Unit      string    `json:"unit" db:"unit"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
