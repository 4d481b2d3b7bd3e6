package dashboard

import (
	"time"

	"coursedash.app/cloud/internal/models"
)

const (
	codePrefix        = "Ref. "
	statusKeyPrefix   = "dashboard-item__course-enrolling__"
	certificateKeySep = "_"
)

type SectionKind string

const (
	SectionEnrollmentStatus SectionKind = "enrollment_status"
	SectionCertificate      SectionKind = "certificate"
)

type PurchaseState string

const (
	PurchaseStatePurchasable PurchaseState = "purchasable"
	PurchaseStatePending     PurchaseState = "pending"
	PurchaseStatePurchased   PurchaseState = "purchased"
)

// Item is the display projection of one enrollment.
type Item struct {
	EnrollmentID string          `json:"enrollment_id"`
	Title        string          `json:"title"`
	Code         string          `json:"code"`
	Footer       []FooterSection `json:"footer"`
}

type FooterSection struct {
	Kind        SectionKind        `json:"kind"`
	Key         string             `json:"key"`
	Status      *EnrollmentStatus  `json:"status,omitempty"`
	Certificate *CertificateFooter `json:"certificate,omitempty"`
}

type EnrollmentStatus struct {
	EnrollmentID   string     `json:"enrollment_id"`
	IsActive       bool       `json:"is_active"`
	CourseRunTitle string     `json:"course_run_title"`
	ResourceLink   string     `json:"resource_link,omitempty"`
	Start          *time.Time `json:"start,omitempty"`
	End            *time.Time `json:"end,omitempty"`
}

type CertificateFooter struct {
	EnrollmentID string         `json:"enrollment_id"`
	Product      models.Product `json:"product"`
	Order        *models.Order  `json:"order,omitempty"`
	State        PurchaseState  `json:"state"`
}

// Derive projects an enrollment into a dashboard item. It fails with a
// *MissingRelationshipError when the course run has no course.
func Derive(e *models.Enrollment) (*Item, error) {
	course, err := courseOf(e)
	if err != nil {
		return nil, err
	}
	return newItem(e, course, buildFooter(e, course)), nil
}

func courseOf(e *models.Enrollment) (*models.Course, error) {
	course := e.CourseRun.Course
	if course == nil {
		return nil, &MissingRelationshipError{EnrollmentID: e.ID, CourseRunID: e.CourseRun.ID}
	}
	return course, nil
}

func newItem(e *models.Enrollment, course *models.Course, footer []FooterSection) *Item {
	return &Item{
		EnrollmentID: e.ID,
		Title:        course.Title,
		Code:         codePrefix + course.Code,
		Footer:       footer,
	}
}

func buildFooter(e *models.Enrollment, course *models.Course) []FooterSection {
	footer := []FooterSection{{
		Kind: SectionEnrollmentStatus,
		Key:  statusKeyPrefix + course.Code,
		Status: &EnrollmentStatus{
			EnrollmentID:   e.ID,
			IsActive:       e.IsActive,
			CourseRunTitle: e.CourseRun.Title,
			ResourceLink:   e.CourseRun.ResourceLink,
			Start:          e.CourseRun.Start,
			End:            e.CourseRun.End,
		},
	}}

	for _, product := range e.Products {
		if !product.IsCertificate() {
			continue
		}
		order := e.LatestOrder(product.ID)
		footer = append(footer, FooterSection{
			Kind: SectionCertificate,
			Key:  CertificateKey(e.ID, product.ID),
			Certificate: &CertificateFooter{
				EnrollmentID: e.ID,
				Product:      product,
				Order:        copyOrder(order),
				State:        purchaseState(order),
			},
		})
	}

	return footer
}

// CertificateKey identifies a certificate section across re-renders.
func CertificateKey(enrollmentID, productID string) string {
	return enrollmentID + certificateKeySep + productID
}

func purchaseState(order *models.Order) PurchaseState {
	if order == nil {
		return PurchaseStatePurchasable
	}
	switch order.State {
	case models.OrderStateValidated:
		return PurchaseStatePurchased
	case models.OrderStatePending:
		return PurchaseStatePending
	default:
		return PurchaseStatePurchasable
	}
}

func copyOrder(order *models.Order) *models.Order {
	if order == nil {
		return nil
	}
	o := *order
	return &o
}
