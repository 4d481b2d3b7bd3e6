package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursedash.app/cloud/internal/cache"
	"coursedash.app/cloud/internal/models"
	"coursedash.app/cloud/internal/storage"
)

func seedService(t *testing.T) (*storage.MemoryStorage, *cache.Memory, *Service) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Failed to seed storage: %v", err)
		}
	}

	must(store.SaveCourse(ctx, &models.Course{ID: "course1", Code: "CS101", Title: "Intro to Testing"}))
	must(store.SaveCourseRun(ctx, &models.CourseRun{ID: "run1", CourseID: "course1", Title: "Spring"}))
	must(store.SaveCourseRun(ctx, &models.CourseRun{ID: "orphan", Title: "Orphan"}))
	must(store.SaveProduct(ctx, &models.Product{ID: "cert", Title: "Certificate", Type: models.ProductTypeCertificate, Price: 1500, Currency: "eur"}))
	must(store.AttachProduct(ctx, "run1", "cert"))
	must(store.SaveEnrollment(ctx, &models.Enrollment{ID: "enr1", User: "alice", IsActive: true, CourseRunID: "run1", CreatedAt: base}))
	must(store.SaveEnrollment(ctx, &models.Enrollment{ID: "enr2", User: "bob", IsActive: true, CourseRunID: "orphan", CreatedAt: base}))

	c := cache.NewMemory()
	return store, c, NewService(store, c, NewMemo(16), time.Minute)
}

func TestService_Item(t *testing.T) {
	_, _, svc := seedService(t)

	item, err := svc.Item(context.Background(), "alice", "enr1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if item.Code != "Ref. CS101" {
		t.Errorf("Expected code 'Ref. CS101', got '%s'", item.Code)
	}
	if len(item.Footer) != 2 {
		t.Errorf("Expected 2 footer sections, got %d", len(item.Footer))
	}
}

func TestService_ItemOwnership(t *testing.T) {
	_, _, svc := seedService(t)

	tests := []struct {
		name, user, id string
	}{
		{"unknown enrollment", "alice", "missing"},
		{"other user's enrollment", "mallory", "enr1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Item(context.Background(), tt.user, tt.id)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestService_ItemMissingCourse(t *testing.T) {
	_, _, svc := seedService(t)

	_, err := svc.Item(context.Background(), "bob", "enr2")
	if !errors.Is(err, ErrMissingRelationship) {
		t.Fatalf("Expected ErrMissingRelationship, got %v", err)
	}
}

func TestService_ItemsCachedUntilInvalidated(t *testing.T) {
	store, c, svc := seedService(t)
	ctx := context.Background()

	items, err := svc.Items(ctx, "alice")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Footer[1].Certificate.State != PurchaseStatePurchasable {
		t.Fatalf("Unexpected items: %+v", items)
	}

	if _, err := c.Get(ctx, "dashboard:user:alice"); err != nil {
		t.Fatalf("Expected dashboard to be cached, got %v", err)
	}

	err = store.SaveOrder(ctx, &models.Order{ID: "o1", EnrollmentID: "enr1", ProductID: "cert", Owner: "alice", State: models.OrderStateValidated})
	if err != nil {
		t.Fatalf("Failed to save order: %v", err)
	}

	cached, err := svc.Items(ctx, "alice")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cached[0].Footer[1].Certificate.State != PurchaseStatePurchasable {
		t.Errorf("Expected cached response before invalidation")
	}

	if err := svc.Invalidate(ctx, "alice"); err != nil {
		t.Fatalf("Failed to invalidate: %v", err)
	}

	fresh, err := svc.Items(ctx, "alice")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fresh[0].Footer[1].Certificate.State != PurchaseStatePurchased {
		t.Errorf("Expected purchased state after invalidation, got %s", fresh[0].Footer[1].Certificate.State)
	}
}

func TestService_ItemsFailOnMissingCourse(t *testing.T) {
	_, c, svc := seedService(t)
	ctx := context.Background()

	items, err := svc.Items(ctx, "bob")
	if !errors.Is(err, ErrMissingRelationship) {
		t.Fatalf("Expected ErrMissingRelationship, got %v", err)
	}
	if items != nil {
		t.Errorf("Expected no items, got %+v", items)
	}
	if _, err := c.Get(ctx, "dashboard:user:bob"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("Expected failed dashboard not to be cached")
	}
}

func TestService_ItemsEmpty(t *testing.T) {
	_, _, svc := seedService(t)

	items, err := svc.Items(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("Expected empty non-nil list, got %#v", items)
	}
}
