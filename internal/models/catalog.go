package models

import "time"

// Class is a course offering within a semester.
type Class struct {
	ID         string    `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	Credits    float64   `db:"credits" json:"credits"`
	SemesterID string    `db:"semester_id" json:"semester_id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Room is a physical examination or lecture room.
type Room struct {
	ID       string `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Building string `db:"building" json:"building"`
	Capacity int    `db:"capacity" json:"capacity"`
}
