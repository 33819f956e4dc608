package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sentinel-core/internal/infrastructure/database"
)

// Repository defines the interface for resource persistence.
type Repository interface {
	Create(ctx context.Context, r *Resource) error
	Get(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]Resource, error)
	Update(ctx context.Context, id string, patch Patch) (*Resource, error)
	Delete(ctx context.Context, id string) error
}

// SQLRepository implements Repository on SQLite or PostgreSQL.
type SQLRepository struct {
	db *database.DB
}

// NewRepository creates a new SQL-backed resource repository.
func NewRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const resourceColumns = `id, name, type, serial_number, plate, location, status,
	acquisition_date, last_maintenance_date, created_at, updated_at`

// Create validates and inserts a resource. The ID is generated if empty.
// A duplicate serial number or plate returns ErrSerialNumberExists or ErrPlateExists.
func (s *SQLRepository) Create(ctx context.Context, r *Resource) error {
	Normalise(r)
	if err := Validate(r); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = "res-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Truncate(time.Second)
	r.CreatedAt = now
	r.UpdatedAt = now
	ts := now.Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (`+resourceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, string(r.Type), nullString(r.SerialNumber), nullString(r.Plate),
		r.Location, string(r.Status), r.AcquisitionDate, nullString(r.LastMaintenanceDate),
		ts, ts,
	)
	if err != nil {
		if conflict := conflictError(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("creating resource: %w", err)
	}
	return nil
}

// Get retrieves a resource by ID.
func (s *SQLRepository) Get(ctx context.Context, id string) (*Resource, error) {
	return scanResource(s.db.QueryRowContext(ctx,
		"SELECT "+resourceColumns+" FROM resources WHERE id = ?", id))
}

// List returns resources matching filter, ordered by name.
func (s *SQLRepository) List(ctx context.Context, filter Filter) ([]Resource, error) {
	var where []string
	var args []any
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Location != "" {
		where = append(where, "location = ?")
		args = append(args, filter.Location)
	}

	query := "SELECT " + resourceColumns + " FROM resources"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()

	resources := []Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resources: %w", err)
	}
	return resources, nil
}

// Update applies patch to the resource with the given ID and returns the result.
// The read, validation and write happen in one transaction.
func (s *SQLRepository) Update(ctx context.Context, id string, patch Patch) (*Resource, error) {
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}

	var updated *Resource
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		current, err := scanResource(tx.QueryRowContext(ctx,
			"SELECT "+resourceColumns+" FROM resources WHERE id = ?", id))
		if err != nil {
			return err
		}

		patch.Apply(current)
		Normalise(current)
		if err := Validate(current); err != nil {
			return err
		}
		current.UpdatedAt = time.Now().UTC().Truncate(time.Second)

		_, err = tx.ExecContext(ctx,
			`UPDATE resources SET name = ?, type = ?, serial_number = ?, plate = ?,
			 location = ?, status = ?, acquisition_date = ?, last_maintenance_date = ?,
			 updated_at = ? WHERE id = ?`,
			current.Name, string(current.Type), nullString(current.SerialNumber),
			nullString(current.Plate), current.Location, string(current.Status),
			current.AcquisitionDate, nullString(current.LastMaintenanceDate),
			current.UpdatedAt.Format(time.RFC3339), id,
		)
		if err != nil {
			if conflict := conflictError(err); conflict != nil {
				return conflict
			}
			return fmt.Errorf("updating resource: %w", err)
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a resource by ID.
func (s *SQLRepository) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM resources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting resource: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting resource: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// conflictError maps a unique violation on serial_number or plate to the
// matching domain error. Anything else, an id collision included, is nil.
func conflictError(err error) error {
	field, ok := database.UniqueViolation(err)
	if !ok {
		return nil
	}
	switch field {
	case "serial_number":
		return ErrSerialNumberExists
	case "plate":
		return ErrPlateExists
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(s scanner) (*Resource, error) {
	var r Resource
	var typ, status string
	var serial, plate, lastMaintenance sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&r.ID, &r.Name, &typ, &serial, &plate, &r.Location, &status,
		&r.AcquisitionDate, &lastMaintenance, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning resource: %w", err)
	}

	r.Type = Type(typ)
	r.Status = Status(status)
	r.SerialNumber = serial.String
	r.Plate = plate.String
	r.LastMaintenanceDate = lastMaintenance.String
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &r, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
