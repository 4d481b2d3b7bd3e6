package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"coursedash.app/cloud/internal/models"
)

type MemoryStorage struct {
	mu sync.RWMutex

	courses     map[string]models.Course
	courseRuns  map[string]models.CourseRun
	products    map[string]models.Product
	attachments map[string][]string
	enrollments map[string]models.Enrollment
	orders      map[string]models.Order
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		courses:     make(map[string]models.Course),
		courseRuns:  make(map[string]models.CourseRun),
		products:    make(map[string]models.Product),
		attachments: make(map[string][]string),
		enrollments: make(map[string]models.Enrollment),
		orders:      make(map[string]models.Order),
	}
}

func (m *MemoryStorage) SaveCourse(ctx context.Context, course *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[course.ID] = *course
	return nil
}

func (m *MemoryStorage) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	course, exists := m.courses[id]
	if !exists {
		return nil, nil
	}
	return &course, nil
}

func (m *MemoryStorage) SaveCourseRun(ctx context.Context, run *models.CourseRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *run
	stored.Course = nil
	m.courseRuns[run.ID] = stored
	return nil
}

func (m *MemoryStorage) GetCourseRun(ctx context.Context, id string) (*models.CourseRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, exists := m.courseRuns[id]
	if !exists {
		return nil, nil
	}
	m.hydrateCourseRun(&run)
	return &run, nil
}

func (m *MemoryStorage) SaveProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = *product
	return nil
}

func (m *MemoryStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	product, exists := m.products[id]
	if !exists {
		return nil, nil
	}
	return &product, nil
}

func (m *MemoryStorage) AttachProduct(ctx context.Context, courseRunID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.courseRuns[courseRunID]; !exists {
		return fmt.Errorf("course run %s not found", courseRunID)
	}
	if _, exists := m.products[productID]; !exists {
		return fmt.Errorf("product %s not found", productID)
	}

	for _, id := range m.attachments[courseRunID] {
		if id == productID {
			return nil
		}
	}
	m.attachments[courseRunID] = append(m.attachments[courseRunID], productID)
	return nil
}

func (m *MemoryStorage) SaveEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID := enrollment.CourseRunID
	if runID == "" {
		runID = enrollment.CourseRun.ID
	}
	if _, exists := m.courseRuns[runID]; !exists {
		return fmt.Errorf("course run %s not found", runID)
	}

	stored := *enrollment
	stored.CourseRunID = runID
	stored.CourseRun = models.CourseRun{}
	stored.Products = nil
	stored.Orders = nil
	m.enrollments[enrollment.ID] = stored
	return nil
}

func (m *MemoryStorage) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enrollment, exists := m.enrollments[id]
	if !exists {
		return nil, nil
	}
	m.hydrateEnrollment(&enrollment)
	return &enrollment, nil
}

func (m *MemoryStorage) FindEnrollmentsByUser(ctx context.Context, user string) ([]*models.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var enrollments []*models.Enrollment
	for _, enrollment := range m.enrollments {
		if enrollment.User != user {
			continue
		}
		enrollmentCopy := enrollment
		m.hydrateEnrollment(&enrollmentCopy)
		enrollments = append(enrollments, &enrollmentCopy)
	}

	sort.Slice(enrollments, func(i, j int) bool {
		a, b := enrollments[i], enrollments[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return enrollments, nil
}

func (m *MemoryStorage) SaveOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.enrollments[order.EnrollmentID]; !exists {
		return fmt.Errorf("enrollment %s not found", order.EnrollmentID)
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *MemoryStorage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, exists := m.orders[id]
	if !exists {
		return nil, nil
	}
	return &order, nil
}

func (m *MemoryStorage) FindOrderByStripeSession(ctx context.Context, sessionID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessionID == "" {
		return nil, nil
	}
	for _, order := range m.orders {
		if order.StripeSessionID == sessionID {
			return &order, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

// hydrate* expect the caller to hold at least a read lock.

func (m *MemoryStorage) hydrateCourseRun(run *models.CourseRun) {
	run.Course = nil
	if run.CourseID == "" {
		return
	}
	if course, exists := m.courses[run.CourseID]; exists {
		run.Course = &course
	}
}

func (m *MemoryStorage) hydrateEnrollment(enrollment *models.Enrollment) {
	run := m.courseRuns[enrollment.CourseRunID]
	m.hydrateCourseRun(&run)
	enrollment.CourseRun = run

	enrollment.Products = nil
	for _, productID := range m.attachments[enrollment.CourseRunID] {
		if product, exists := m.products[productID]; exists {
			enrollment.Products = append(enrollment.Products, product)
		}
	}

	enrollment.Orders = nil
	for _, order := range m.orders {
		if order.EnrollmentID == enrollment.ID {
			enrollment.Orders = append(enrollment.Orders, order)
		}
	}
	sort.Slice(enrollment.Orders, func(i, j int) bool {
		a, b := enrollment.Orders[i], enrollment.Orders[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
