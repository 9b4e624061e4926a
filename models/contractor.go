package models

import "time"

type Contractor struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Name          string    `json:"name" gorm:"size:200;not null;uniqueIndex"`
	ContactPerson string    `json:"contact_person"`
	Email         string    `json:"email"`
	PhoneNumber   string    `json:"phone_number"`
	TaxNumber     string    `json:"tax_number"`
	Address       string    `json:"address"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
