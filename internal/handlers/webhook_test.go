package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"coursedash.app/cloud/internal/dashboard"
	"coursedash.app/cloud/internal/models"
	"coursedash.app/cloud/internal/payments"
	"coursedash.app/cloud/internal/testutil"
)

func (env *testEnv) order(t *testing.T, id string) *models.Order {
	t.Helper()
	order, err := env.store.GetOrder(context.Background(), id)
	if err != nil || order == nil {
		t.Fatalf("Expected order %s, got %v, %v", id, order, err)
	}
	return order
}

func (env *testEnv) webhook(t *testing.T, eventType string, session map[string]interface{}) {
	t.Helper()
	payload := testutil.CreateStripeWebhookPayload(eventType, session)
	w := env.do(testutil.WebhookRequest(payload))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	env := newTestEnv(t, nil)

	payload := testutil.CreateStripeWebhookPayload(payments.EventCheckoutCompleted, map[string]interface{}{"id": "cs_x"})
	req := testutil.WebhookRequest(payload)
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	w := env.do(req)
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "Invalid signature")
}

func TestStripeWebhook_CheckoutCompleted(t *testing.T) {
	env := newTestEnv(t, nil)
	checkout := env.checkout(t, "alice", testutil.EnrollmentID, testutil.CertificateID)

	// Warm the cache so the webhook has something to invalidate.
	env.do(testutil.AuthedRequest(t, http.MethodGet, "/api/v1/dashboard/enrollments", "alice"))

	env.webhook(t, payments.EventCheckoutCompleted,
		testutil.CreateMockCheckoutSession("cs_test_1", checkout.OrderID, "paid", "alice@example.com"))

	if order := env.order(t, checkout.OrderID); order.State != models.OrderStateValidated {
		t.Errorf("Expected validated order, got %s", order.State)
	}

	sent := env.mailer.Messages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 receipt, got %d", len(sent))
	}
	if sent[0].To != "alice@example.com" || !strings.Contains(sent[0].Subject, testutil.CourseTitle) {
		t.Errorf("Unexpected receipt %+v", sent[0])
	}

	items, err := env.server.dashboard.Items(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Failed to load dashboard: %v", err)
	}
	if state := items[0].Footer[1].Certificate.State; state != dashboard.PurchaseStatePurchased {
		t.Errorf("Expected purchased certificate after webhook, got %s", state)
	}

	// Redelivery is a no-op.
	env.webhook(t, payments.EventCheckoutCompleted,
		testutil.CreateMockCheckoutSession("cs_test_1", checkout.OrderID, "paid", "alice@example.com"))
	if len(env.mailer.Messages()) != 1 {
		t.Errorf("Expected redelivered event not to send another receipt")
	}
}

func TestStripeWebhook_LooksUpOrderBySession(t *testing.T) {
	env := newTestEnv(t, nil)
	checkout := env.checkout(t, "alice", testutil.EnrollmentID, testutil.CertificateID)

	env.webhook(t, payments.EventCheckoutCompleted,
		testutil.CreateMockCheckoutSession("cs_test_1", "", "paid", ""))

	if order := env.order(t, checkout.OrderID); order.State != models.OrderStateValidated {
		t.Errorf("Expected validated order, got %s", order.State)
	}
	if len(env.mailer.Messages()) != 0 {
		t.Errorf("Expected no receipt without a customer email")
	}
}

func TestStripeWebhook_UnknownMetadataFallsBackToSession(t *testing.T) {
	env := newTestEnv(t, nil)
	checkout := env.checkout(t, "alice", testutil.EnrollmentID, testutil.CertificateID)

	env.webhook(t, payments.EventCheckoutCompleted,
		testutil.CreateMockCheckoutSession("cs_test_1", "stale-order-id", "paid", "alice@example.com"))

	if order := env.order(t, checkout.OrderID); order.State != models.OrderStateValidated {
		t.Errorf("Expected validated order, got %s", order.State)
	}
	if len(env.mailer.Messages()) != 1 {
		t.Errorf("Expected 1 receipt, got %d", len(env.mailer.Messages()))
	}
}

func TestStripeWebhook_UnpaidStaysPending(t *testing.T) {
	env := newTestEnv(t, nil)
	checkout := env.checkout(t, "alice", testutil.EnrollmentID, testutil.CertificateID)

	env.webhook(t, payments.EventCheckoutCompleted,
		testutil.CreateMockCheckoutSession("cs_test_1", checkout.OrderID, "unpaid", "alice@example.com"))

	if order := env.order(t, checkout.OrderID); order.State != models.OrderStatePending {
		t.Errorf("Expected pending order, got %s", order.State)
	}
}

func TestStripeWebhook_CheckoutExpired(t *testing.T) {
	env := newTestEnv(t, nil)
	checkout := env.checkout(t, "alice", testutil.EnrollmentID, testutil.CertificateID)

	env.webhook(t, payments.EventCheckoutExpired,
		testutil.CreateMockCheckoutSession("cs_test_1", checkout.OrderID, "unpaid", ""))

	if order := env.order(t, checkout.OrderID); order.State != models.OrderStateCanceled {
		t.Errorf("Expected canceled order, got %s", order.State)
	}

	item, err := env.server.dashboard.Item(context.Background(), "alice", testutil.EnrollmentID)
	if err != nil {
		t.Fatalf("Failed to load item: %v", err)
	}
	if state := item.Footer[1].Certificate.State; state != dashboard.PurchaseStatePurchasable {
		t.Errorf("Expected certificate purchasable again, got %s", state)
	}
}

func TestStripeWebhook_UnknownSessionAndEvent(t *testing.T) {
	env := newTestEnv(t, nil)

	env.webhook(t, payments.EventCheckoutCompleted,
		testutil.CreateMockCheckoutSession("cs_unknown", "", "paid", ""))
	env.webhook(t, "invoice.paid", map[string]interface{}{"id": "in_1", "object": "invoice"})
}
