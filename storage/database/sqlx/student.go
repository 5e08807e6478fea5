package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/RouahImad/Project-epg-sub000/core"
	"github.com/RouahImad/Project-epg-sub000/core/student"
)

const studentColumns = "id, first_name, last_name, email, phone, created_by, created_at, updated_at"

var studentOrdering = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"email":      "email",
	"created_at": "created_at",
}

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{repository{exec: exec}}
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	_, err := execute(ctx, repo.exec,
		"INSERT INTO students ("+studentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.FirstName, s.LastName, s.Email, s.Phone, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func studentConditions(filter student.QueryFilter) conditions {
	var conds conditions
	if len(filter.IDs) > 0 {
		conds.add("id IN (?)", filter.IDs)
	}
	conds.search(filter.Search, "first_name", "last_name", "email")
	if filter.CreatedBy != "" {
		conds.add("created_by = ?", filter.CreatedBy)
	}
	return conds
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	conds := studentConditions(filter)
	students := make([]student.Student, 0)
	q := "SELECT " + studentColumns + " FROM students" + conds.where() + orderBy(ordering, studentOrdering, "last_name ASC, first_name ASC, id ASC")
	if err := selectAll(ctx, repo.exec, &students, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (repo studentRepository) CountStudents(ctx context.Context, filter student.QueryFilter) (int, error) {
	conds := studentConditions(filter)
	var count int
	if err := get(ctx, repo.exec, &count, "SELECT COUNT(*) FROM students"+conds.where(), conds.args...); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return count, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	var s student.Student
	if err := get(ctx, repo.getExec(exec), &s, "SELECT "+studentColumns+" FROM students WHERE id = ?", id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student by ID")
	}
	return s, nil
}

func (repo studentRepository) GetStudentByEmail(ctx context.Context, email string) (student.Student, error) {
	var s student.Student
	if err := get(ctx, repo.exec, &s, "SELECT "+studentColumns+" FROM students WHERE email = ? LIMIT 1", email); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student by email")
	}
	return s, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	n, err := execute(ctx, repo.exec,
		"UPDATE students SET first_name = ?, last_name = ?, email = ?, phone = ?, updated_at = ? WHERE id = ?",
		s.FirstName, s.LastName, s.Email, s.Phone, s.UpdatedAt, s.ID)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return s, nil
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id string) error {
	n, err := execute(ctx, repo.exec, "DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo studentRepository) HasEnrollments(ctx context.Context, id string) (bool, error) {
	var count int
	if err := get(ctx, repo.exec, &count, "SELECT COUNT(*) FROM enrollments WHERE student_id = ?", id); err != nil {
		return false, errors.Wrap(err, "counting student enrollments")
	}
	return count > 0, nil
}
