package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"coursedash.app/cloud/internal/logger"
	"coursedash.app/cloud/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteStorage struct {
	db   *sql.DB
	path string
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; one connection keeps :memory: databases
	// consistent across queries as well.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{
		db:   db,
		path: path,
	}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err == nil {
		logger.Debug("Database migrated", map[string]interface{}{
			"path":    s.path,
			"version": version,
			"dirty":   dirty,
		})
	}

	return nil
}

func (s *SQLiteStorage) SaveCourse(ctx context.Context, course *models.Course) error {
	query := `INSERT OR REPLACE INTO courses (id, code, title, created_at) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, course.ID, course.Code, course.Title, orNow(course.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save course: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT id, code, title, created_at FROM courses WHERE id = ?`

	var course models.Course
	err := s.db.QueryRowContext(ctx, query, id).Scan(&course.ID, &course.Code, &course.Title, &course.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (s *SQLiteStorage) SaveCourseRun(ctx context.Context, run *models.CourseRun) error {
	query := `INSERT OR REPLACE INTO course_runs (id, course_id, title, resource_link, starts_at, ends_at) VALUES (?, ?, ?, ?, ?, ?)`

	var courseID sql.NullString
	if run.CourseID != "" {
		courseID = sql.NullString{String: run.CourseID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		courseID,
		run.Title,
		run.ResourceLink,
		nullTime(run.Start),
		nullTime(run.End),
	)
	if err != nil {
		return fmt.Errorf("failed to save course run: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetCourseRun(ctx context.Context, id string) (*models.CourseRun, error) {
	query := `
		SELECT r.id, r.title, r.resource_link, r.starts_at, r.ends_at, r.course_id,
		       c.id, c.code, c.title, c.created_at
		FROM course_runs r
		LEFT JOIN courses c ON c.id = r.course_id
		WHERE r.id = ?`

	run, err := scanCourseRun(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStorage) SaveProduct(ctx context.Context, product *models.Product) error {
	query := `INSERT OR REPLACE INTO products (id, title, type, price, currency, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		product.ID,
		product.Title,
		string(product.Type),
		product.Price,
		product.Currency,
		orNow(product.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT id, title, type, price, currency, created_at FROM products WHERE id = ?`

	var product models.Product
	var productType string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Title,
		&productType,
		&product.Price,
		&product.Currency,
		&product.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	product.Type = models.ProductType(productType)
	return &product, nil
}

func (s *SQLiteStorage) AttachProduct(ctx context.Context, courseRunID, productID string) error {
	query := `
		INSERT OR IGNORE INTO course_run_products (course_run_id, product_id, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM course_run_products WHERE course_run_id = ?))`

	_, err := s.db.ExecContext(ctx, query, courseRunID, productID, courseRunID)
	if err != nil {
		return fmt.Errorf("failed to attach product: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) SaveEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	query := `INSERT OR REPLACE INTO enrollments (id, username, course_run_id, is_active, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	runID := enrollment.CourseRunID
	if runID == "" {
		runID = enrollment.CourseRun.ID
	}

	_, err := s.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.User,
		runID,
		enrollment.IsActive,
		enrollment.State,
		orNow(enrollment.CreatedAt),
		orNow(enrollment.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT id, username, course_run_id, is_active, state, created_at, updated_at FROM enrollments WHERE id = ?`

	var enrollment models.Enrollment
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&enrollment.ID,
		&enrollment.User,
		&enrollment.CourseRunID,
		&enrollment.IsActive,
		&enrollment.State,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.hydrateEnrollment(ctx, &enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (s *SQLiteStorage) FindEnrollmentsByUser(ctx context.Context, user string) ([]*models.Enrollment, error) {
	query := `SELECT id, username, course_run_id, is_active, state, created_at, updated_at FROM enrollments WHERE username = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}

	var enrollments []*models.Enrollment
	for rows.Next() {
		var enrollment models.Enrollment
		err := rows.Scan(
			&enrollment.ID,
			&enrollment.User,
			&enrollment.CourseRunID,
			&enrollment.IsActive,
			&enrollment.State,
			&enrollment.CreatedAt,
			&enrollment.UpdatedAt,
		)
		if err != nil {
			closeRows(rows)
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, &enrollment)
	}
	if err := rows.Err(); err != nil {
		closeRows(rows)
		return nil, fmt.Errorf("error iterating enrollments: %w", err)
	}
	// Hydration issues more queries on the single connection, so the
	// cursor must be released first.
	closeRows(rows)

	for _, enrollment := range enrollments {
		if err := s.hydrateEnrollment(ctx, enrollment); err != nil {
			return nil, err
		}
	}

	return enrollments, nil
}

func (s *SQLiteStorage) SaveOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, enrollment_id, product_id, owner, state, stripe_session_id, total, currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		state = excluded.state,
		stripe_session_id = excluded.stripe_session_id,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		order.ID,
		order.EnrollmentID,
		order.ProductID,
		order.Owner,
		order.State,
		order.StripeSessionID,
		order.Total,
		order.Currency,
		orNow(order.CreatedAt),
		orNow(order.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

const orderColumns = `id, enrollment_id, product_id, owner, state, stripe_session_id, total, currency, created_at, updated_at`

func (s *SQLiteStorage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *SQLiteStorage) FindOrderByStripeSession(ctx context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, nil
	}
	order, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE stripe_session_id = ?`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) hydrateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	run, err := s.GetCourseRun(ctx, enrollment.CourseRunID)
	if err != nil {
		return fmt.Errorf("failed to load course run: %w", err)
	}
	if run != nil {
		enrollment.CourseRun = *run
	} else {
		enrollment.CourseRun = models.CourseRun{ID: enrollment.CourseRunID}
	}

	products, err := s.attachedProducts(ctx, enrollment.CourseRunID)
	if err != nil {
		return err
	}
	enrollment.Products = products

	orders, err := s.enrollmentOrders(ctx, enrollment.ID)
	if err != nil {
		return err
	}
	enrollment.Orders = orders

	return nil
}

func (s *SQLiteStorage) attachedProducts(ctx context.Context, courseRunID string) ([]models.Product, error) {
	query := `
		SELECT p.id, p.title, p.type, p.price, p.currency, p.created_at
		FROM course_run_products crp
		JOIN products p ON p.id = crp.product_id
		WHERE crp.course_run_id = ?
		ORDER BY crp.position`

	rows, err := s.db.QueryContext(ctx, query, courseRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer closeRows(rows)

	var products []models.Product
	for rows.Next() {
		var product models.Product
		var productType string
		if err := rows.Scan(&product.ID, &product.Title, &productType, &product.Price, &product.Currency, &product.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		product.Type = models.ProductType(productType)
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

func (s *SQLiteStorage) enrollmentOrders(ctx context.Context, enrollmentID string) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE enrollment_id = ? ORDER BY created_at, id`, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer closeRows(rows)

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var order models.Order
	err := row.Scan(
		&order.ID,
		&order.EnrollmentID,
		&order.ProductID,
		&order.Owner,
		&order.State,
		&order.StripeSessionID,
		&order.Total,
		&order.Currency,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func scanCourseRun(row scanner) (*models.CourseRun, error) {
	var (
		run           models.CourseRun
		start, end    sql.NullTime
		runCourseID   sql.NullString
		courseID      sql.NullString
		courseCode    sql.NullString
		courseTitle   sql.NullString
		courseCreated sql.NullTime
	)

	err := row.Scan(
		&run.ID,
		&run.Title,
		&run.ResourceLink,
		&start,
		&end,
		&runCourseID,
		&courseID,
		&courseCode,
		&courseTitle,
		&courseCreated,
	)
	if err != nil {
		return nil, err
	}

	if start.Valid {
		run.Start = &start.Time
	}
	if end.Valid {
		run.End = &end.Time
	}
	run.CourseID = runCourseID.String
	if courseID.Valid {
		run.Course = &models.Course{
			ID:        courseID.String,
			Code:      courseCode.String,
			Title:     courseTitle.String,
			CreatedAt: courseCreated.Time,
		}
	}

	return &run, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.Warn("Failed to close rows", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
