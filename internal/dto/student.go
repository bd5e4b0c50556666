package dto

import "github.com/noah-isme/school-portal-api/internal/models"

// AdmissionRequest is the intake form posted to /admissions.
type AdmissionRequest struct {
	Name               string `json:"name" validate:"required,min=2,max=120"`
	Class              string `json:"class" validate:"required,max=20"`
	Guardian           string `json:"guardian" validate:"required,max=120"`
	Contact            string `json:"contact" validate:"required,max=40"`
	Address            string `json:"address" validate:"omitempty,max=255"`
	DateOfBirth        string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	PreviousSchool     string `json:"previous_school" validate:"omitempty,max=120"`
	PreviousPercentage *int   `json:"previous_percentage" validate:"omitempty,min=0,max=100"`
	Email              string `json:"email" validate:"omitempty,email"`
	Password           string `json:"password" validate:"omitempty,min=6"`
}

// AdmissionResponse returns the created student and optional login account.
type AdmissionResponse struct {
	Student models.Student `json:"student"`
	UserID  string         `json:"user_id,omitempty"`
}

// MarkAttendanceRequest marks one day for a student.
type MarkAttendanceRequest struct {
	Date   string                  `json:"date" validate:"required,datetime=2006-01-02"`
	Status models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE"`
}

// AttendanceResponse is the attendance aggregate after an update.
type AttendanceResponse struct {
	StudentID  string `json:"student_id"`
	Present    int    `json:"present"`
	Absent     int    `json:"absent"`
	Late       int    `json:"late"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// PayFeeRequest records a payment towards one month.
type PayFeeRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// FeeLedgerResponse lists the fee records in month order with totals.
type FeeLedgerResponse struct {
	StudentID   string             `json:"student_id"`
	Records     []models.FeeRecord `json:"records"`
	TotalDue    float64            `json:"total_due"`
	TotalPaid   float64            `json:"total_paid"`
	Outstanding float64            `json:"outstanding"`
}
