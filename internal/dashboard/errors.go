package dashboard

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("enrollment not found")
	ErrMissingRelationship = errors.New("missing relationship")
)

// MissingRelationshipError reports an enrollment whose course run does not
// reference a course. It signals a broken upstream contract and is never
// retried or rendered around.
type MissingRelationshipError struct {
	EnrollmentID string
	CourseRunID  string
}

func (e *MissingRelationshipError) Error() string {
	return fmt.Sprintf("enrollment %s: course run %s must provide course attribute", e.EnrollmentID, e.CourseRunID)
}

func (e *MissingRelationshipError) Is(target error) bool {
	return target == ErrMissingRelationship
}
