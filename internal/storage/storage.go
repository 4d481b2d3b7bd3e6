package storage

import (
	"context"

	"coursedash.app/cloud/internal/models"
)

// Storage persists the catalog, enrollments and orders. Lookups return
// (nil, nil) when the record does not exist.
type Storage interface {
	SaveCourse(ctx context.Context, course *models.Course) error
	GetCourse(ctx context.Context, id string) (*models.Course, error)

	SaveCourseRun(ctx context.Context, run *models.CourseRun) error
	GetCourseRun(ctx context.Context, id string) (*models.CourseRun, error)

	SaveProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	AttachProduct(ctx context.Context, courseRunID, productID string) error

	SaveEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	FindEnrollmentsByUser(ctx context.Context, user string) ([]*models.Enrollment, error)

	SaveOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	FindOrderByStripeSession(ctx context.Context, sessionID string) (*models.Order, error)

	Close() error
}
