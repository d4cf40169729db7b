package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vkadlec/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `
	a.id, a.person_uid, p.name, a.session_id, a.distance, a.marked_at
`

// scanMarks scans attendance rows including the person name.
func scanMarks(rows *sql.Rows) ([]database.AttendanceRecord, error) {
	var marks []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.PersonUID,
			&rec.PersonName,
			&rec.SessionID,
			&rec.Distance,
			&rec.MarkedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		marks = append(marks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return marks, nil
}

// ListMarks returns marks within [from, to), newest first.
func (r *AttendanceRepository) ListMarks(ctx context.Context, from, to time.Time) ([]database.AttendanceRecord, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance a JOIN people p ON p.uid = a.person_uid
		WHERE a.marked_at >= $1 AND a.marked_at < $2
		ORDER BY a.marked_at DESC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	return scanMarks(rows)
}

// ListMarksByPerson returns all marks for a person, newest first.
func (r *AttendanceRepository) ListMarksByPerson(ctx context.Context, personUID string) ([]database.AttendanceRecord, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance a JOIN people p ON p.uid = a.person_uid
		WHERE a.person_uid = $1
		ORDER BY a.marked_at DESC
	`

	rows, err := r.pool.Query(ctx, query, personUID)
	if err != nil {
		return nil, fmt.Errorf("query attendance by person: %w", err)
	}
	defer rows.Close()

	return scanMarks(rows)
}

// LastMark returns the most recent mark for a person, nil if none.
func (r *AttendanceRepository) LastMark(ctx context.Context, personUID string) (*database.AttendanceRecord, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance a JOIN people p ON p.uid = a.person_uid
		WHERE a.person_uid = $1
		ORDER BY a.marked_at DESC
		LIMIT 1
	`

	var rec database.AttendanceRecord
	err := r.pool.QueryRow(ctx, query, personUID).Scan(
		&rec.ID,
		&rec.PersonUID,
		&rec.PersonName,
		&rec.SessionID,
		&rec.Distance,
		&rec.MarkedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last mark: %w", err)
	}
	return &rec, nil
}

// SaveMark stores one attendance mark.
func (r *AttendanceRepository) SaveMark(ctx context.Context, rec *database.AttendanceRecord) error {
	query := `
		INSERT INTO attendance (person_uid, session_id, distance, marked_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	markedAt := rec.MarkedAt
	if markedAt.IsZero() {
		markedAt = time.Now()
	}

	err := r.pool.QueryRow(ctx, query, rec.PersonUID, rec.SessionID, rec.Distance, markedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("save attendance mark: %w", err)
	}
	return nil
}
