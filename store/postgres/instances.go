package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/id"
	"github.com/certvine/certflow/instance"
)

const instanceColumns = `id, owner_ref, certification_ref, parameters, stage, status,
	payload, attempt, version, error_log, suspended_at, resumed_at, completed_at,
	created_at, updated_at`

// Create persists a new instance.
func (s *Store) Create(ctx context.Context, inst *instance.Instance) error {
	m, err := toInstanceModel(inst)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO certflow_instances (`+instanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		m.ID, m.OwnerRef, m.CertificationRef, m.Parameters, m.Stage, m.Status,
		m.Payload, m.Attempt, m.Version, m.ErrorLog, m.SuspendedAt, m.ResumedAt, m.CompletedAt,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return certflow.ErrInstanceExists
		}
		return fmt.Errorf("certflow/postgres: create instance: %w", err)
	}
	return nil
}

// Get retrieves an instance by ID.
func (s *Store) Get(ctx context.Context, instID id.InstanceID) (*instance.Instance, error) {
	m := new(instanceModel)
	err := s.pool.QueryRow(ctx, `
		SELECT `+instanceColumns+`
		FROM certflow_instances
		WHERE id = $1`,
		instID.String(),
	).Scan(
		&m.ID, &m.OwnerRef, &m.CertificationRef, &m.Parameters, &m.Stage, &m.Status,
		&m.Payload, &m.Attempt, &m.Version, &m.ErrorLog, &m.SuspendedAt, &m.ResumedAt, &m.CompletedAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, certflow.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("certflow/postgres: get instance: %w", err)
	}
	return fromInstanceModel(m)
}

// Update persists changes to an existing instance. The write succeeds
// only when the caller's version matches the stored version; the
// statement increments the version so a concurrent stale writer fails
// with ErrVersionConflict. On success the caller's version is advanced
// to match.
func (s *Store) Update(ctx context.Context, inst *instance.Instance) error {
	m, err := toInstanceModel(inst)
	if err != nil {
		return err
	}
	m.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		UPDATE certflow_instances
		SET stage = $1, status = $2, payload = $3, attempt = $4,
			version = version + 1, error_log = $5, suspended_at = $6,
			resumed_at = $7, completed_at = $8, updated_at = $9
		WHERE id = $10 AND version = $11`,
		m.Stage, m.Status, m.Payload, m.Attempt,
		m.ErrorLog, m.SuspendedAt,
		m.ResumedAt, m.CompletedAt, m.UpdatedAt,
		m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("certflow/postgres: update instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		checkErr := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM certflow_instances WHERE id = $1)`,
			m.ID,
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("certflow/postgres: update instance: %w", checkErr)
		}
		if !exists {
			return certflow.ErrInstanceNotFound
		}
		return certflow.ErrVersionConflict
	}

	inst.Version++
	inst.UpdatedAt = m.UpdatedAt
	return nil
}

// List returns instances matching opts, oldest first.
func (s *Store) List(ctx context.Context, opts instance.ListOpts) ([]*instance.Instance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM certflow_instances`
	args := make([]any, 0, 3)

	if opts.Status != "" {
		args = append(args, string(opts.Status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY created_at ASC, id ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("certflow/postgres: list instances: %w", err)
	}
	defer rows.Close()

	var instances []*instance.Instance
	for rows.Next() {
		m := new(instanceModel)
		if scanErr := rows.Scan(
			&m.ID, &m.OwnerRef, &m.CertificationRef, &m.Parameters, &m.Stage, &m.Status,
			&m.Payload, &m.Attempt, &m.Version, &m.ErrorLog, &m.SuspendedAt, &m.ResumedAt, &m.CompletedAt,
			&m.CreatedAt, &m.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("certflow/postgres: scan instance: %w", scanErr)
		}
		inst, convErr := fromInstanceModel(m)
		if convErr != nil {
			return nil, convErr
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("certflow/postgres: list instances: %w", err)
	}

	return instances, nil
}
