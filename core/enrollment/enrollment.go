package enrollment

import (
	"time"

	"github.com/irsalhamdi/lms/validate"
)

type Status string

const (
	Active            Status = "active"
	Completed         Status = "completed"
	CertificateIssued Status = "certificate_issued"
)

type Enrollment struct {
	ID             string    `json:"id" db:"enrollment_id"`
	CourseID       string    `json:"courseId" db:"course_id"`
	StudentID      string    `json:"studentId" db:"user_id"`
	EnrolledAt     time.Time `json:"enrolledAt" db:"enrolled_at"`
	Progress       int       `json:"progress" db:"progress"`
	CertificateURL *string   `json:"certificateUrl" db:"certificate_url"`
	Status         Status    `json:"status" db:"status"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

func New(courseID, studentID string, now time.Time) Enrollment {
	return Enrollment{
		ID:         validate.GenerateID(),
		CourseID:   courseID,
		StudentID:  studentID,
		EnrolledAt: now,
		Status:     Active,
		UpdatedAt:  now,
	}
}

// Progress is an enrollment with the lesson counts behind its percentage.
type Progress struct {
	Enrollment
	CompletedLessons int `json:"completedLessons"`
	TotalLessons     int `json:"totalLessons"`
}

type CertificateUp struct {
	CertificateURL string `json:"certificateUrl" validate:"required,url"`
}

// Percentage rounds completed/total half up to a whole percent. Only a
// fully completed course reaches 100.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return min((completed*200+total)/(2*total), 99)
}

// advance moves an active enrollment to completed once progress reaches 100.
// Later states are never rolled back.
func advance(s Status, progress int) Status {
	if s == Active && progress >= 100 {
		return Completed
	}
	return s
}
