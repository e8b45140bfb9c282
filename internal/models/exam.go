package models

import "time"

// ExamStatus tracks the exam lifecycle. SCHEDULED is the only state that
// permits edits; COMPLETED and CANCELLED are terminal.
type ExamStatus string

const (
	ExamStatusScheduled ExamStatus = "SCHEDULED"
	ExamStatusCompleted ExamStatus = "COMPLETED"
	ExamStatusCancelled ExamStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s ExamStatus) Terminal() bool {
	return s == ExamStatusCompleted || s == ExamStatusCancelled
}

// Exam is a scheduled examination for a class in a room. Date is stored at
// day granularity (UTC midnight); StartTime/EndTime are zero-padded "HH:MM"
// strings, so lexicographic comparison matches chronological order.
type Exam struct {
	ID        string     `db:"id" json:"id"`
	ClassID   string     `db:"class_id" json:"class_id"`
	RoomID    string     `db:"room_id" json:"room_id"`
	Title     string     `db:"title" json:"title"`
	Date      time.Time  `db:"date" json:"date"`
	StartTime string     `db:"start_time" json:"start_time"`
	EndTime   string     `db:"end_time" json:"end_time"`
	Status    ExamStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Overlaps applies the half-open interval test against another exam on the
// same day: two intervals overlap iff each starts before the other ends.
// Back-to-back exams (end == start) do not overlap.
func (e Exam) Overlaps(startTime, endTime string) bool {
	return e.StartTime < endTime && e.EndTime > startTime
}

// ExamConflict describes an advisory scheduling clash. Student conflicts are
// warnings, not hard blocks.
type ExamConflict struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	ExamID      string `json:"exam_id"`
	ExamTitle   string `json:"exam_title"`
}

// ExamFilter describes query params for listing exams.
type ExamFilter struct {
	ClassID  string
	RoomID   string
	Date     *time.Time
	Status   ExamStatus
	Page     int
	PageSize int
}

// RoomAvailability is the result of a room availability probe.
type RoomAvailability struct {
	Available bool   `json:"available"`
	RoomID    string `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Blocking  []Exam `json:"blocking,omitempty"`
}
