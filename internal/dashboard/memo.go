package dashboard

import (
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"

	"coursedash.app/cloud/internal/models"
	"coursedash.app/cloud/internal/telemetry"
)

const DefaultMemoCapacity = 1024

type memoKey struct {
	enrollmentID string
	courseID     string
}

type memoEntry struct {
	fingerprint uint64
	footer      []FooterSection
}

// Memo caches derived footers keyed by enrollment and course. An entry is
// reused only while the fingerprint of the fields the footer reads is
// unchanged, so returned slices are shared and must not be mutated.
type Memo struct {
	capacity int

	mu      sync.Mutex
	entries map[memoKey]memoEntry

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewMemo(capacity int) *Memo {
	if capacity <= 0 {
		capacity = DefaultMemoCapacity
	}
	return &Memo{
		capacity: capacity,
		entries:  make(map[memoKey]memoEntry),
	}
}

// Derive is the memoized counterpart of the package-level Derive.
func (m *Memo) Derive(e *models.Enrollment) (*Item, error) {
	course, err := courseOf(e)
	if err != nil {
		return nil, err
	}
	return newItem(e, course, m.footer(e, course)), nil
}

func (m *Memo) Footer(e *models.Enrollment) ([]FooterSection, error) {
	course, err := courseOf(e)
	if err != nil {
		return nil, err
	}
	return m.footer(e, course), nil
}

func (m *Memo) footer(e *models.Enrollment, course *models.Course) []FooterSection {
	key := memoKey{enrollmentID: e.ID, courseID: course.ID}
	fp := fingerprint(e, course)

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok && entry.fingerprint == fp {
		m.hits.Inc()
		telemetry.ObserveMemo(true)
		return entry.footer
	}

	m.misses.Inc()
	telemetry.ObserveMemo(false)

	if len(m.entries) >= m.capacity {
		m.entries = make(map[memoKey]memoEntry)
	}

	footer := buildFooter(e, course)
	m.entries[key] = memoEntry{fingerprint: fp, footer: footer}
	return footer
}

func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memo) Stats() (hits, misses uint64) {
	return m.hits.Load(), m.misses.Load()
}

// fingerprint hashes every field buildFooter reads or copies into the footer.
func fingerprint(e *models.Enrollment, course *models.Course) uint64 {
	d := xxhash.New()
	write := func(s string) {
		_, _ = d.WriteString(s)
		_, _ = d.WriteString("\x00")
	}
	writeTime := func(t time.Time) {
		write(strconv.FormatInt(t.UnixNano(), 10))
	}

	write(e.ID)
	write(strconv.FormatBool(e.IsActive))
	write(course.ID)
	write(course.Code)
	write(e.CourseRun.Title)
	write(e.CourseRun.ResourceLink)
	if e.CourseRun.Start != nil {
		writeTime(*e.CourseRun.Start)
	}
	write("|")
	if e.CourseRun.End != nil {
		writeTime(*e.CourseRun.End)
	}

	for _, p := range e.Products {
		write(p.ID)
		write(string(p.Type))
		write(p.Title)
		write(strconv.FormatInt(p.Price, 10))
		write(p.Currency)
		writeTime(p.CreatedAt)
	}
	write("|")
	for _, o := range e.Orders {
		write(o.ID)
		write(o.EnrollmentID)
		write(o.ProductID)
		write(o.Owner)
		write(o.State)
		write(o.StripeSessionID)
		write(strconv.FormatInt(o.Total, 10))
		write(o.Currency)
		writeTime(o.CreatedAt)
		writeTime(o.UpdatedAt)
	}

	return d.Sum64()
}
