package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"

	"coursedash.app/cloud/internal/email"
	"coursedash.app/cloud/internal/logger"
	"coursedash.app/cloud/internal/models"
	"coursedash.app/cloud/internal/payments"
)

const maxWebhookBody = int64(65536)

func (s *Server) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Error reading webhook body", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSONError(w, http.StatusServiceUnavailable, "Error reading request body")
		return
	}

	event, err := payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"), s.webhookSecret)
	if err != nil {
		logger.Warn("Webhook signature verification failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSONError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	logger.Info("Received webhook event", map[string]interface{}{
		"event_type": string(event.Type),
		"event_id":   event.ID,
	})

	switch string(event.Type) {
	case payments.EventCheckoutCompleted:
		err = s.handleCheckoutCompleted(r.Context(), event)
	case payments.EventCheckoutExpired:
		err = s.handleCheckoutExpired(r.Context(), event)
	default:
		logger.Debug("Unhandled webhook event type", map[string]interface{}{
			"event_type": string(event.Type),
		})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}

func (s *Server) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	sess, order, err := s.orderForEvent(ctx, event)
	if err != nil || order == nil {
		return err
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		logger.Info("Checkout completed without payment, order stays pending", map[string]interface{}{
			"order_id":       order.ID,
			"payment_status": string(sess.PaymentStatus),
		})
		return nil
	}
	if order.State == models.OrderStateValidated {
		return nil
	}

	order.State = models.OrderStateValidated
	order.UpdatedAt = s.now().UTC()
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("error validating order: %w", err)
	}
	s.invalidateUser(ctx, order.Owner)

	logger.Info("Certificate order validated", map[string]interface{}{
		"order_id":      order.ID,
		"enrollment_id": order.EnrollmentID,
		"product_id":    order.ProductID,
	})

	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		s.sendReceipt(ctx, sess.CustomerDetails.Email, order)
	}
	return nil
}

func (s *Server) handleCheckoutExpired(ctx context.Context, event stripe.Event) error {
	_, order, err := s.orderForEvent(ctx, event)
	if err != nil || order == nil {
		return err
	}
	if order.State != models.OrderStatePending {
		return nil
	}

	order.State = models.OrderStateCanceled
	order.UpdatedAt = s.now().UTC()
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return fmt.Errorf("error canceling order: %w", err)
	}
	s.invalidateUser(ctx, order.Owner)

	logger.Info("Certificate order canceled", map[string]interface{}{
		"order_id": order.ID,
	})
	return nil
}

// orderForEvent decodes the checkout session carried by event and loads its
// order, by metadata first and session id second. A nil order means the
// session is not ours.
func (s *Server) orderForEvent(ctx context.Context, event stripe.Event) (*stripe.CheckoutSession, *models.Order, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, nil, fmt.Errorf("error parsing checkout session: %w", err)
	}

	var order *models.Order
	if id := sess.Metadata[payments.MetadataOrderID]; id != "" {
		o, err := s.store.GetOrder(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading order: %w", err)
		}
		order = o
	}
	if order == nil && sess.ID != "" {
		o, err := s.store.FindOrderByStripeSession(ctx, sess.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading order by session: %w", err)
		}
		order = o
	}
	if order == nil {
		logger.Warn("No order for checkout session", map[string]interface{}{
			"session_id": sess.ID,
		})
	}
	return &sess, order, nil
}

func (s *Server) sendReceipt(ctx context.Context, to string, order *models.Order) {
	enrollment, err := s.store.GetEnrollment(ctx, order.EnrollmentID)
	if err != nil || enrollment == nil {
		logger.Warn("Skipping receipt, enrollment unavailable", map[string]interface{}{
			"order_id": order.ID,
		})
		return
	}
	product := enrollment.Product(order.ProductID)
	if product == nil {
		return
	}

	title := enrollment.CourseRun.Title
	if enrollment.CourseRun.Course != nil {
		title = enrollment.CourseRun.Course.Title
	}

	subject, body := email.CertificateReceipt(title, *product, *order)
	if err := s.mailer.Send(to, subject, body); err != nil {
		logger.Error("Failed to send certificate receipt", map[string]interface{}{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}

func (s *Server) invalidateUser(ctx context.Context, user string) {
	if err := s.dashboard.Invalidate(ctx, user); err != nil {
		logger.Warn("Failed to invalidate dashboard cache", map[string]interface{}{
			"user":  user,
			"error": err.Error(),
		})
	}
}
