package models

import "time"

// GradeComponentType categorises a gradable item within a class.
type GradeComponentType string

// Supported component types.
const (
	ComponentTypeMidterm       GradeComponentType = "MIDTERM"
	ComponentTypeFinal         GradeComponentType = "FINAL"
	ComponentTypeQuiz          GradeComponentType = "QUIZ"
	ComponentTypeAssignment    GradeComponentType = "ASSIGNMENT"
	ComponentTypeProject       GradeComponentType = "PROJECT"
	ComponentTypeParticipation GradeComponentType = "PARTICIPATION"
	ComponentTypeLab           GradeComponentType = "LAB"
	ComponentTypeOther         GradeComponentType = "OTHER"
)

// ValidComponentType reports whether t is one of the supported types.
func ValidComponentType(t GradeComponentType) bool {
	switch t {
	case ComponentTypeMidterm, ComponentTypeFinal, ComponentTypeQuiz, ComponentTypeAssignment,
		ComponentTypeProject, ComponentTypeParticipation, ComponentTypeLab, ComponentTypeOther:
		return true
	}
	return false
}

// GradeComponent is a weighted gradable item belonging to a class.
type GradeComponent struct {
	ID          string             `db:"id" json:"id"`
	ClassID     string             `db:"class_id" json:"class_id"`
	Name        string             `db:"name" json:"name"`
	Type        GradeComponentType `db:"type" json:"type"`
	Weight      float64            `db:"weight" json:"weight"`
	MaxScore    float64            `db:"max_score" json:"max_score"`
	DueDate     *time.Time         `db:"due_date" json:"due_date,omitempty"`
	IsPublished bool               `db:"is_published" json:"is_published"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// GradeComponentPatch carries optional fields for partial updates.
type GradeComponentPatch struct {
	Name        *string             `json:"name,omitempty"`
	Type        *GradeComponentType `json:"type,omitempty"`
	Weight      *float64            `json:"weight,omitempty"`
	MaxScore    *float64            `json:"max_score,omitempty"`
	DueDate     *time.Time          `json:"due_date,omitempty"`
	IsPublished *bool               `json:"is_published,omitempty"`
}

// WeightSummary reports the weight budget state of a class.
type WeightSummary struct {
	Valid      bool             `json:"valid"`
	Total      float64          `json:"total"`
	Components []GradeComponent `json:"components"`
}

// GradeEntry records a student's score on a component. One entry exists
// per (component, enrollment) pair.
type GradeEntry struct {
	ID           string    `db:"id" json:"id"`
	ComponentID  string    `db:"component_id" json:"component_id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Score        float64   `db:"score" json:"score"`
	Remarks      *string   `db:"remarks" json:"remarks,omitempty"`
	GradedBy     *string   `db:"graded_by" json:"graded_by,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentGrade stores the computed result for an enrollment.
type EnrollmentGrade struct {
	ID              string    `db:"id" json:"id"`
	EnrollmentID    string    `db:"enrollment_id" json:"enrollment_id"`
	ClassID         string    `db:"class_id" json:"class_id"`
	TotalPercentage float64   `db:"total_percentage" json:"total_percentage"`
	LetterGrade     string    `db:"letter_grade" json:"letter_grade"`
	GradePoints     float64   `db:"grade_points" json:"grade_points"`
	IsFinalized     bool      `db:"is_finalized" json:"is_finalized"`
	CalculatedAt    time.Time `db:"calculated_at" json:"calculated_at"`
}

// ComponentScore is one component's contribution within a computed grade.
type ComponentScore struct {
	ComponentID   string  `json:"component_id"`
	ComponentName string  `json:"component_name"`
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"max_score"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
}

// GradeBreakdown is the full computed view for one enrollment.
type GradeBreakdown struct {
	EnrollmentID    string           `json:"enrollment_id"`
	ClassID         string           `json:"class_id"`
	Components      []ComponentScore `json:"components"`
	TotalPercentage float64          `json:"total_percentage"`
	LetterGrade     string           `json:"letter_grade"`
	GradePoints     float64          `json:"grade_points"`
	IsFinalized     bool             `json:"is_finalized"`
}

// CourseGradeRow is one finalized (or pending) course result used for GPA
// aggregation and transcripts.
type CourseGradeRow struct {
	ClassID     string  `db:"class_id" json:"class_id"`
	ClassCode   string  `db:"class_code" json:"class_code"`
	ClassName   string  `db:"class_name" json:"class_name"`
	SemesterID  string  `db:"semester_id" json:"semester_id"`
	Credits     float64 `db:"credits" json:"credits"`
	LetterGrade string  `db:"letter_grade" json:"letter_grade"`
	GradePoints float64 `db:"grade_points" json:"grade_points"`
	IsFinalized bool    `db:"is_finalized" json:"is_finalized"`
}

// GPASummary aggregates grade points over a set of courses.
type GPASummary struct {
	StudentID    string           `json:"student_id"`
	SemesterID   string           `json:"semester_id,omitempty"`
	GPA          float64          `json:"gpa"`
	TotalCredits float64          `json:"total_credits"`
	Courses      []CourseGradeRow `json:"courses"`
}
