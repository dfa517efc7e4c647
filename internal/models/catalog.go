package models

import (
	"time"
)

// User is a platform user. Identity is owned by the auth subsystem; the
// engine consumes it as a read-only fact.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name      string    `gorm:"size:255" json:"name"`
	Role      string    `gorm:"size:50" json:"role"` // 'student', 'instructor', 'admin'
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// Course is a catalog entry owned by the course subsystem.
type Course struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	InstructorID uint      `gorm:"index" json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for Course model.
func (Course) TableName() string {
	return "courses"
}

// Enrollment joins a user to a course. Read-only to the engine; enrollment
// gates quiz submission and determines course leaderboard membership.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_enrollment,unique" json:"user_id"`
	CourseID  uint      `gorm:"not null;index:idx_enrollment,unique" json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Enrollment model.
func (Enrollment) TableName() string {
	return "enrollments"
}

// CourseProgress tracks a user's progress through a course. The quiz pipeline
// recomputes ProgressPercentage from passed quizzes and marks completion,
// which issues the certificate reference.
type CourseProgress struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"not null;index:idx_progress,unique" json:"user_id"`
	CourseID           uint      `gorm:"not null;index:idx_progress,unique" json:"course_id"`
	ProgressPercentage int       `gorm:"default:0" json:"progress_percentage"`
	IsCompleted        bool      `gorm:"default:false" json:"is_completed"`
	CertificateURL     string    `gorm:"size:255" json:"certificate_url"`
	LastAccessed       time.Time `json:"last_accessed"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for CourseProgress model.
func (CourseProgress) TableName() string {
	return "course_progress"
}
