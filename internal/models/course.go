package models

import (
	"time"
)

type Course struct {
	ID        string    `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CourseRun is a scheduled offering of a course. Course is nil when the
// upstream relationship is missing.
type CourseRun struct {
	ID           string     `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	ResourceLink string     `json:"resource_link" db:"resource_link"`
	Start        *time.Time `json:"start,omitempty" db:"start"`
	End          *time.Time `json:"end,omitempty" db:"end"`
	CourseID     string     `json:"-" db:"course_id"`

	Course *Course `json:"course,omitempty" db:"-"`
}

// IsOpen reports whether the run has started and not yet ended at now.
func (r *CourseRun) IsOpen(now time.Time) bool {
	if r.Start != nil && now.Before(*r.Start) {
		return false
	}
	if r.End != nil && now.After(*r.End) {
		return false
	}
	return true
}
