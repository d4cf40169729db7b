package mariadb

import (
	"context"
	"fmt"
)

// Student is a roster entry read from the school information system.
type Student struct {
	ID        string
	FirstName string
	LastName  string
	ClassName string
	Active    bool
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// GetStudents returns all students, optionally filtered by class name.
// An empty className loads the whole roster.
func (p *Pool) GetStudents(ctx context.Context, className string) ([]Student, error) {
	query := `
		SELECT s.student_id, s.first_name, s.last_name, c.name, s.active
		FROM students s
		JOIN classes c ON c.id = s.class_id
	`
	var args []any
	if className != "" {
		query += ` WHERE c.name = ?`
		args = append(args, className)
	}
	query += ` ORDER BY s.last_name, s.first_name`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.FirstName, &st.LastName, &st.ClassName, &st.Active); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}

	return students, nil
}

// GetStudent returns a single student by SIS ID, nil when not found.
func (p *Pool) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	query := `
		SELECT s.student_id, s.first_name, s.last_name, c.name, s.active
		FROM students s
		JOIN classes c ON c.id = s.class_id
		WHERE s.student_id = ?
	`

	var st Student
	err := p.db.QueryRowContext(ctx, query, studentID).Scan(
		&st.ID, &st.FirstName, &st.LastName, &st.ClassName, &st.Active,
	)
	if err != nil {
		return nil, fmt.Errorf("student %s not found", studentID)
	}

	return &st, nil
}

// ListClasses returns the distinct class names in the roster.
func (p *Pool) ListClasses(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name FROM classes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}

	return classes, nil
}
