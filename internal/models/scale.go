package models

import "time"

// GradeScale is an ordered set of letter-grade definitions.
type GradeScale struct {
	ID          string            `db:"id" json:"id"`
	Name        string            `db:"name" json:"name"`
	IsDefault   bool              `db:"is_default" json:"is_default"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	Definitions []GradeDefinition `json:"definitions"`
}

// GradeDefinition maps a percentage range to a letter grade and grade points.
type GradeDefinition struct {
	ID            string  `db:"id" json:"id"`
	ScaleID       string  `db:"scale_id" json:"scale_id"`
	Letter        string  `db:"letter" json:"letter"`
	MinPercentage float64 `db:"min_percentage" json:"min_percentage"`
	MaxPercentage float64 `db:"max_percentage" json:"max_percentage"`
	GradePoints   float64 `db:"grade_points" json:"grade_points"`
}
