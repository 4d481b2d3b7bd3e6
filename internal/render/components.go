package render

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

import (
	"net/url"
	"time"

	"github.com/a-h/templ"

	"coursedash.app/cloud/internal/dashboard"
	"coursedash.app/cloud/internal/models"
)

// EnrollmentItem composes a derived dashboard item into its shell.
func EnrollmentItem(item *dashboard.Item, now time.Time) templ.Component {
	footer := make([]templ.Component, 0, len(item.Footer))
	for _, section := range item.Footer {
		switch section.Kind {
		case dashboard.SectionEnrollmentStatus:
			footer = append(footer, Enrolled(section.Key, section.Status, now))
		case dashboard.SectionCertificate:
			footer = append(footer, ProductCertificateFooter(section.Key, section.Certificate))
		}
	}
	return DashboardItem(item.Title, item.Code, footer)
}

func CheckoutPath(enrollmentID, productID string) string {
	return "/api/v1/enrollments/" + url.PathEscape(enrollmentID) + "/products/" + url.PathEscape(productID) + "/checkout"
}

func showAccessLink(status *dashboard.EnrollmentStatus, now time.Time) bool {
	run := models.CourseRun{Start: status.Start, End: status.End}
	return status.ResourceLink != "" && run.IsOpen(now)
}

func priceLabel(p models.Product) string {
	return models.FormatPrice(p.Price, p.Currency)
}
