package models

import "time"

// Client is a company or person on whose behalf procedures are filed.
type Client struct {
	ID           string    `db:"id" json:"id"`
	BusinessName string    `db:"business_name" json:"business_name"`
	CUIT         string    `db:"cuit" json:"cuit"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	Address      string    `db:"address" json:"address"`
	ContactName  string    `db:"contact_name" json:"contact_name"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ClientFilter encapsulates allowed search parameters for listing clients.
type ClientFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
