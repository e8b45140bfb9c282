package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusRegistered EnrollmentStatus = "REGISTERED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
)

// Enrollment captures a student's registration to a class within a semester.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	ClassID      string           `db:"class_id" json:"class_id"`
	SemesterID   string           `db:"semester_id" json:"semester_id"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	RegisteredAt time.Time        `db:"registered_at" json:"registered_at"`
}
