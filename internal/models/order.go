package models

import "time"

const (
	OrderStatePending   = "pending"
	OrderStateValidated = "validated"
	OrderStateCanceled  = "canceled"
)

type Order struct {
	ID              string    `json:"id" db:"id"`
	EnrollmentID    string    `json:"enrollment_id" db:"enrollment_id"`
	ProductID       string    `json:"product_id" db:"product_id"`
	Owner           string    `json:"owner" db:"owner"`
	State           string    `json:"state" db:"state"`
	StripeSessionID string    `json:"-" db:"stripe_session_id"`
	Total           int64     `json:"total" db:"total"`
	Currency        string    `json:"currency" db:"currency"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	CheckoutURL string `json:"checkout_url"`
}
