package models

import (
	"time"
)

const (
	EnrollmentStateSet    = "set"
	EnrollmentStateFailed = "failed"
)

// Enrollment is a learner's registration in a course run. Products are the
// products attached to the course run, in attachment order.
type Enrollment struct {
	ID          string    `json:"id" db:"id"`
	User        string    `json:"user" db:"user"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	State       string    `json:"state" db:"state"`
	CourseRunID string    `json:"-" db:"course_run_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	CourseRun CourseRun `json:"course_run" db:"-"`
	Products  []Product `json:"products" db:"-"`
	Orders    []Order   `json:"orders,omitempty" db:"-"`
}

// LatestOrder returns the most recently created order for productID, or nil.
func (e *Enrollment) LatestOrder(productID string) *Order {
	var latest *Order
	for i := range e.Orders {
		o := &e.Orders[i]
		if o.ProductID != productID {
			continue
		}
		if latest == nil || !o.CreatedAt.Before(latest.CreatedAt) {
			latest = o
		}
	}
	return latest
}

// Product returns the attached product with the given id, or nil.
func (e *Enrollment) Product(productID string) *Product {
	for i := range e.Products {
		if e.Products[i].ID == productID {
			return &e.Products[i]
		}
	}
	return nil
}
