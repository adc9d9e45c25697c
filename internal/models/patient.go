package models

import "time"

// Patient is a neonate under phototherapy management.
type Patient struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DateOfBirth    string    `json:"dateOfBirth"`
	Weight         float64   `json:"weight"` // grams
	GestationalAge int       `json:"gestationalAge"` // weeks
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
