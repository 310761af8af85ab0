package customers

import "time"

// Customer is a named buyer; walk-in sales carry no customer at all.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows customer listings.
type Filter struct {
	Search     string
	ActiveOnly bool
	Page       int
	PerPage    int
}
