package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"coursedash.app/cloud/internal/dashboard"
	"coursedash.app/cloud/internal/testutil"
)

func TestListItems(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(testutil.AuthedRequest(t, http.MethodGet, "/api/v1/dashboard/enrollments", "alice"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var response ItemsResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(response.Items))
	}

	item := response.Items[0]
	if item.Title != testutil.CourseTitle || item.Code != testutil.CourseCode {
		t.Errorf("Unexpected item header %q / %q", item.Title, item.Code)
	}
	if len(item.Footer) != 2 {
		t.Fatalf("Expected 2 footer sections, got %d", len(item.Footer))
	}
	if item.Footer[0].Kind != dashboard.SectionEnrollmentStatus {
		t.Errorf("Expected status section first, got %s", item.Footer[0].Kind)
	}
	if item.Footer[1].Key != testutil.EnrollmentID+"_"+testutil.CertificateID {
		t.Errorf("Unexpected certificate key %s", item.Footer[1].Key)
	}
	if item.Footer[1].Certificate.State != dashboard.PurchaseStatePurchasable {
		t.Errorf("Expected purchasable certificate, got %s", item.Footer[1].Certificate.State)
	}
}

func TestListItems_CachedUntilInvalidated(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.do(testutil.AuthedRequest(t, http.MethodGet, "/api/v1/dashboard/enrollments", "alice"))
	if _, err := env.cache.Get(ctx, "dashboard:user:alice"); err != nil {
		t.Fatalf("Expected dashboard to be cached, got %v", err)
	}

	w := env.do(testutil.AuthedRequest(t, http.MethodPost, checkoutPath(testutil.EnrollmentID, testutil.CertificateID), "alice"))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if _, err := env.cache.Get(ctx, "dashboard:user:alice"); err == nil {
		t.Error("Expected checkout to invalidate the cached dashboard")
	}
}

func TestGetItem(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(testutil.AuthedRequest(t, http.MethodGet, "/api/v1/dashboard/enrollments/"+testutil.EnrollmentID, "alice"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var item dashboard.Item
	if err := json.NewDecoder(w.Body).Decode(&item); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if item.EnrollmentID != testutil.EnrollmentID {
		t.Errorf("Unexpected enrollment %s", item.EnrollmentID)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		id   string
	}{
		{"unknown enrollment", "missing"},
		{"enrollment of another learner", testutil.OtherUserEnrID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(testutil.AuthedRequest(t, http.MethodGet, "/api/v1/dashboard/enrollments/"+tt.id, "alice"))
			testutil.AssertErrorResponse(t, w, http.StatusNotFound, "Enrollment not found")
		})
	}
}

func TestGetItem_MissingCourse(t *testing.T) {
	env := newTestEnv(t, nil)
	testutil.SeedEnrollment(t, env.store, testutil.OrphanID, "alice", testutil.OrphanRunID)

	w := env.do(testutil.AuthedRequest(t, http.MethodGet, "/api/v1/dashboard/enrollments/"+testutil.OrphanID, "alice"))
	testutil.AssertErrorResponse(t, w, http.StatusInternalServerError, "Internal server error")

	w = env.do(testutil.AuthedRequest(t, http.MethodGet, "/api/v1/dashboard/enrollments", "alice"))
	testutil.AssertErrorResponse(t, w, http.StatusInternalServerError, "Internal server error")
}

func TestEnrollmentPage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(testutil.AuthedRequest(t, http.MethodGet, "/dashboard/enrollments/"+testutil.EnrollmentID, "alice"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %s", ct)
	}

	body := w.Body.String()
	for _, want := range []string{
		"Ref. " + testutil.CourseCode,
		"dashboard-item__course-enrolling__" + testutil.CourseCode,
		`data-key="enr1_cert1"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}
}

func TestDashboardPage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(testutil.AuthedRequest(t, http.MethodGet, "/dashboard", "alice"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "<!DOCTYPE html>") {
		t.Errorf("Expected full HTML document")
	}
}
