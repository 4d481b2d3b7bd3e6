package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"coursedash.app/cloud/internal/auth"
	"coursedash.app/cloud/internal/models"
	"coursedash.app/cloud/internal/payments"
	"coursedash.app/cloud/internal/storage"
)

const (
	JWTSecret     = "test-jwt-secret"
	WebhookSecret = "whsec_test"

	CourseID       = "course1"
	CourseCode     = "CS101"
	CourseTitle    = "Intro to Testing"
	CourseRunID    = "run1"
	OrphanRunID    = "orphan"
	CertificateID  = "cert1"
	CredentialID   = "cred1"
	EnrollmentID   = "enr1"
	OrphanID       = "enr-orphan"
	OtherUserEnrID = "enr-bob"
)

var BaseTime = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

// SeedCatalog stores one course with a run offering a certificate and a
// credential, plus a run whose course is missing.
func SeedCatalog(t testing.TB, s storage.Storage) {
	t.Helper()
	ctx := context.Background()

	start := BaseTime
	end := BaseTime.AddDate(1, 0, 0)

	must(t, s.SaveCourse(ctx, &models.Course{ID: CourseID, Code: CourseCode, Title: CourseTitle, CreatedAt: BaseTime}))
	must(t, s.SaveCourseRun(ctx, &models.CourseRun{
		ID:           CourseRunID,
		CourseID:     CourseID,
		Title:        "Spring session",
		ResourceLink: "https://lms.example.com/run1",
		Start:        &start,
		End:          &end,
	}))
	must(t, s.SaveCourseRun(ctx, &models.CourseRun{ID: OrphanRunID, Title: "Orphan session"}))

	products := []models.Product{
		{ID: CertificateID, Title: "Certificate of achievement", Type: models.ProductTypeCertificate, Price: 1500, Currency: "eur", CreatedAt: BaseTime},
		{ID: CredentialID, Title: "Verified credential", Type: models.ProductTypeCredential, Price: 9900, Currency: "eur", CreatedAt: BaseTime},
	}
	for i := range products {
		must(t, s.SaveProduct(ctx, &products[i]))
		must(t, s.AttachProduct(ctx, CourseRunID, products[i].ID))
	}
}

// SeedEnrollment stores an active enrollment of user in courseRunID.
func SeedEnrollment(t testing.TB, s storage.Storage, id, user, courseRunID string) {
	t.Helper()
	must(t, s.SaveEnrollment(context.Background(), &models.Enrollment{
		ID:          id,
		User:        user,
		IsActive:    true,
		State:       models.EnrollmentStateSet,
		CourseRunID: courseRunID,
		CreatedAt:   BaseTime,
		UpdatedAt:   BaseTime,
	}))
}

// SetupTestData seeds the catalog, an enrollment for alice, and one for bob.
func SetupTestData(t testing.TB, s storage.Storage) {
	t.Helper()
	SeedCatalog(t, s)
	SeedEnrollment(t, s, EnrollmentID, "alice", CourseRunID)
	SeedEnrollment(t, s, OtherUserEnrID, "bob", CourseRunID)
}

func Token(t testing.TB, user string) string {
	t.Helper()
	token, err := auth.NewMiddleware(JWTSecret).Sign(user, time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func AuthedRequest(t testing.TB, method, target, user string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+Token(t, user))
	return req
}

// FakeProvider records checkout requests and hands out sequential session ids.
type FakeProvider struct {
	mu       sync.Mutex
	Requests []payments.CheckoutRequest
	Err      error
}

func (p *FakeProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	p.Requests = append(p.Requests, req)
	id := fmt.Sprintf("cs_test_%d", len(p.Requests))
	return &payments.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

type Message struct {
	To, Subject, Body string
}

type FakeMailer struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

func (m *FakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, Message{To: to, Subject: subject, Body: body})
	return nil
}

func (m *FakeMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Sent...)
}

// CreateStripeWebhookPayload wraps a checkout session object in an event.
func CreateStripeWebhookPayload(eventType string, sessionData map[string]interface{}) []byte {
	event := map[string]interface{}{
		"id":          "evt_test123",
		"object":      "event",
		"type":        eventType,
		"api_version": "2025-03-31.basil",
		"data": map[string]interface{}{
			"object": sessionData,
		},
	}

	payload, _ := json.Marshal(event)
	return payload
}

func CreateMockCheckoutSession(sessionID, orderID, paymentStatus, customerEmail string) map[string]interface{} {
	session := map[string]interface{}{
		"id":             sessionID,
		"object":         "checkout.session",
		"payment_status": paymentStatus,
		"metadata":       map[string]interface{}{},
	}
	if orderID != "" {
		session["metadata"] = map[string]interface{}{payments.MetadataOrderID: orderID}
	}
	if customerEmail != "" {
		session["customer_details"] = map[string]interface{}{"email": customerEmail}
	}
	return session
}

// WebhookRequest builds a webhook request signed with WebhookSecret.
func WebhookRequest(payload []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", payments.SignPayload(payload, WebhookSecret, time.Now()))
	return req
}

// AssertErrorResponse checks if the error response matches expected values
func AssertErrorResponse(t testing.TB, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	if w.Code != expectedStatus {
		t.Errorf("Expected status %d, got %d", expectedStatus, w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}

	if response["error"] != expectedError {
		t.Errorf("Expected error '%s', got '%s'", expectedError, response["error"])
	}
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Failed to seed test data: %v", err)
	}
}
