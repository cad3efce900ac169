package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var phone *string

	err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&phone,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	u.Phone = phone
	return &u, nil
}

func scanPet(row pgx.Row) (*Pet, error) {
	var p Pet

	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Species,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}

	return &p, nil
}

const appointmentColumns = `id, pet_id, client_id, appointment_date, appointment_time,
	service_type, notes, admin_notes, status, created_by_admin, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var createdByAdmin *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.PetID,
		&a.ClientID,
		&a.Date,
		&a.Time,
		&a.ServiceType,
		&a.Notes,
		&a.AdminNotes,
		&a.Status,
		&createdByAdmin,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.CreatedByAdmin = createdByAdmin
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, email, phone, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, species, created_at, updated_at
		FROM pets
		WHERE id = $1
	`, id)
	return scanPet(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, pet_id, client_id, appointment_date, appointment_time,
			 service_type, notes, admin_notes, status, created_by_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.PetID, appt.ClientID, appt.Date, appt.Time,
		appt.ServiceType, appt.Notes, appt.Status, appt.CreatedByAdmin)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, adminNotes *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    admin_notes = COALESCE($4, admin_notes),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, adminNotes)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]Detail, error) {
	query := `
		SELECT a.id, a.pet_id, a.client_id, a.appointment_date, a.appointment_time,
		       a.service_type, a.notes, a.admin_notes, a.status, a.created_by_admin,
		       a.created_at, a.updated_at,
		       u.full_name, u.email, u.phone,
		       p.name, p.species
		FROM appointments a
		JOIN users u ON a.client_id = u.id
		JOIN pets p ON a.pet_id = p.id
	`

	var conditions []string
	var params []any

	if filter.ClientID != nil {
		params = append(params, *filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("a.client_id = $%d", len(params)))
	}
	if filter.Status != nil {
		params = append(params, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(params)))
	}
	if filter.Date != nil {
		params = append(params, *filter.Date)
		conditions = append(conditions, fmt.Sprintf("a.appointment_date = $%d", len(params)))
	}

	for i, c := range conditions {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " ORDER BY a.appointment_date ASC, a.appointment_time ASC"

	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Detail
	for rows.Next() {
		var d Detail
		var createdByAdmin *uuid.UUID
		var clientPhone *string

		err := rows.Scan(
			&d.ID,
			&d.PetID,
			&d.ClientID,
			&d.Date,
			&d.Time,
			&d.ServiceType,
			&d.Notes,
			&d.AdminNotes,
			&d.Status,
			&createdByAdmin,
			&d.CreatedAt,
			&d.UpdatedAt,
			&d.ClientName,
			&d.ClientEmail,
			&clientPhone,
			&d.PetName,
			&d.PetSpecies,
		)
		if err != nil {
			return nil, err
		}

		d.CreatedByAdmin = createdByAdmin
		d.ClientPhone = clientPhone
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
