// Package model defines domain entities for the application.
package model

import "time"

// Account is a tenant: the organizational unit every scoped record belongs to.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
