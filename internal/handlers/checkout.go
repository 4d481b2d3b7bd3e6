package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"coursedash.app/cloud/internal/auth"
	"coursedash.app/cloud/internal/logger"
	"coursedash.app/cloud/internal/models"
	"coursedash.app/cloud/internal/payments"
)

// Checkout starts the purchase of a certificate product attached to one of
// the learner's enrollments. A pending order does not block a new attempt:
// the abandoned session expires and its order is canceled by the webhook.
func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.UserFromContext(ctx)
	enrollmentID := chi.URLParam(r, "enrollmentID")
	productID := chi.URLParam(r, "productID")

	enrollment, err := s.dashboard.Enrollment(ctx, user, enrollmentID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	product := enrollment.Product(productID)
	if product == nil {
		writeJSONError(w, http.StatusNotFound, "Product not found")
		return
	}
	if !product.IsCertificate() {
		writeJSONError(w, http.StatusBadRequest, "Product is not a certificate")
		return
	}
	for _, o := range enrollment.Orders {
		if o.ProductID == productID && o.State == models.OrderStateValidated {
			writeJSONError(w, http.StatusConflict, "Certificate already purchased")
			return
		}
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:           uuid.NewString(),
		EnrollmentID: enrollment.ID,
		ProductID:    product.ID,
		Owner:        user,
		State:        models.OrderStatePending,
		Total:        product.Price,
		Currency:     product.Currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.SaveOrder(ctx, order); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		OrderID:      order.ID,
		EnrollmentID: enrollment.ID,
		ProductID:    product.ID,
		ProductTitle: product.Title,
		Amount:       product.Price,
		Currency:     product.Currency,
		Customer:     user,
	})
	if err != nil {
		logger.Error("Failed to create checkout session", map[string]interface{}{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		order.State = models.OrderStateCanceled
		order.UpdatedAt = s.now().UTC()
		if err := s.store.SaveOrder(ctx, order); err != nil {
			logger.Error("Failed to cancel order", map[string]interface{}{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
		hubFor(r).CaptureException(err)
		writeJSONError(w, http.StatusBadGateway, "Payment provider unavailable")
		return
	}

	order.StripeSessionID = session.ID
	order.UpdatedAt = s.now().UTC()
	if err := s.store.SaveOrder(ctx, order); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateUser(ctx, user)

	logger.Info("Checkout session created", map[string]interface{}{
		"order_id":      order.ID,
		"enrollment_id": enrollment.ID,
		"product_id":    product.ID,
		"session_id":    session.ID,
	})

	writeJSON(w, http.StatusCreated, models.CheckoutResponse{
		OrderID:     order.ID,
		CheckoutURL: session.URL,
	})
}
