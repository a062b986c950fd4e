package models

import (
	"math"
	"time"
)

// AssessmentType enumerates kinds of assessment.
type AssessmentType string

const (
	AssessmentQuiz       AssessmentType = "QUIZ"
	AssessmentAssignment AssessmentType = "ASSIGNMENT"
	AssessmentTest       AssessmentType = "TEST"
	AssessmentExam       AssessmentType = "EXAM"
)

// Valid returns true when the type is supported.
func (t AssessmentType) Valid() bool {
	switch t {
	case AssessmentQuiz, AssessmentAssignment, AssessmentTest, AssessmentExam:
		return true
	default:
		return false
	}
}

// Assessment is a graded piece of work for a class and subject in a term.
type Assessment struct {
	ID        string         `db:"id" json:"id"`
	ClassID   string         `db:"class_id" json:"classId"`
	SubjectID string         `db:"subject_id" json:"subjectId"`
	TermID    string         `db:"term_id" json:"termId"`
	Title     string         `db:"title" json:"title"`
	Type      AssessmentType `db:"type" json:"type"`
	MaxScore  float64        `db:"max_score" json:"maxScore"`
	HeldOn    time.Time      `db:"held_on" json:"heldOn"`
	CreatedBy string         `db:"created_by" json:"createdBy"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// AssessmentFilter narrows assessment listings.
type AssessmentFilter struct {
	ClassID   string
	SubjectID string
	TermID    string
}

// Grade is a student's score on an assessment.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	AssessmentID string    `db:"assessment_id" json:"assessmentId"`
	StudentID    string    `db:"student_id" json:"studentId"`
	Score        float64   `db:"score" json:"score"`
	Remarks      *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// GradeRow is a grade joined with the student's name.
type GradeRow struct {
	Grade
	StudentName string `db:"student_name" json:"studentName"`
}

// SubjectAverage is a per-subject percentage average.
type SubjectAverage struct {
	SubjectID   string  `db:"subject_id" json:"subjectId"`
	SubjectName string  `db:"subject_name" json:"subjectName"`
	Assessments int     `db:"assessments" json:"assessments"`
	Average     float64 `db:"average" json:"average"`
}

// StudentReport summarises a student's term performance.
type StudentReport struct {
	StudentID string           `json:"studentId"`
	TermID    string           `json:"termId"`
	Subjects  []SubjectAverage `json:"subjects"`
	Overall   float64          `json:"overall"`
}

// ComputeOverall averages the subject averages.
func (r *StudentReport) ComputeOverall() {
	if len(r.Subjects) == 0 {
		r.Overall = 0
		return
	}
	var total float64
	for _, s := range r.Subjects {
		total += s.Average
	}
	r.Overall = roundTo(total/float64(len(r.Subjects)), 2)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
