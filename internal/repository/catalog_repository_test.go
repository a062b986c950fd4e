package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-dashboard-api/internal/models"
)

func TestDepartmentRepositoryDeleteDetachesMembers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE teachers SET department_id = NULL WHERE department_id = $1")).
		WithArgs("d1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects SET department_id = NULL WHERE department_id = $1")).
		WithArgs("d1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM departments WHERE id = $1")).
		WithArgs("d1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "d1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryDeleteMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE teachers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE subjects").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM departments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentRepositoryFindByHead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDepartmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE d.head_teacher_id = $1 LIMIT 1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "head_teacher_id", "created_at", "updated_at", "head_teacher_name", "teacher_count", "subject_count"}).
			AddRow("d1", "SCI", "Sciences", "t1", now, now, "Grace Achieng", 4, 3))

	department, err := repo.FindByHead(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "SCI", department.Code)
	assert.Equal(t, 4, department.TeacherCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListBindsTermFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND c.grade_level = $2 AND LOWER(c.name) LIKE $3 ORDER BY c.grade_level ASC, c.name ASC LIMIT 20 OFFSET 0")).
		WithArgs("term-1", 9, "%9a%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "grade_level", "stream", "created_at", "updated_at", "class_teacher_id", "class_teacher_name", "student_count"}).
			AddRow("c1", "9A", 9, "", now, now, "t1", "Grace Achieng", 32))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM (")).
		WithArgs("term-1", 9, "%9a%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	classes, total, err := repo.List(context.Background(), models.ClassFilter{TermID: "term-1", GradeLevel: 9, Search: "9A"})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, classes[0].ClassTeacherName)
	assert.Equal(t, "Grace Achieng", *classes[0].ClassTeacherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryHasDependents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM students WHERE class_id = $1)")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := repo.HasDependents(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryCreateDuplicateCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec("INSERT INTO subjects").WillReturnError(&pq.Error{Code: "23505", Constraint: "subjects_code_key"})

	subject := &models.Subject{Code: "MATH", Name: "Mathematics"}
	err := repo.Create(context.Background(), subject)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotEmpty(t, subject.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryListByDepartment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE 1=1 AND department_id = $1 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "department_id", "created_at", "updated_at"}).
			AddRow("sub1", "BIO", "Biology", "d1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects WHERE 1=1 AND department_id = $1")).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	subjects, total, err := repo.List(context.Background(), models.SubjectFilter{DepartmentID: "d1"})
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicRepositoryActivateTerm(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT academic_year_id FROM terms WHERE id = $1 FOR UPDATE")).
		WithArgs("term-2").
		WillReturnRows(sqlmock.NewRows([]string{"academic_year_id"}).AddRow("y1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_active = (id = $1)")).
		WithArgs("term-2").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_current = (id = $1)")).
		WithArgs("y1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.ActivateTerm(context.Background(), "term-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicRepositoryActivateUnknownTerm(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT academic_year_id FROM terms").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.ActivateTerm(context.Background(), "nope"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicRepositoryCreateCurrentYear(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_years SET is_current = FALSE WHERE is_current")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO academic_years").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	year := &models.AcademicYear{
		Name:      "2026/2027",
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2027, 7, 15, 0, 0, 0, 0, time.UTC),
		IsCurrent: true,
	}
	require.NoError(t, repo.CreateYear(context.Background(), year))
	assert.NotEmpty(t, year.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicRepositoryListTermsForYear(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAcademicRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM terms WHERE academic_year_id = $1 ORDER BY start_date ASC")).
		WithArgs("y1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "academic_year_id", "name", "start_date", "end_date", "is_active", "created_at"}).
			AddRow("term-1", "y1", "Term 1", now, now, true, now))

	terms, err := repo.ListTerms(context.Background(), "y1")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.True(t, terms[0].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
