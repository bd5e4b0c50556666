package models

import (
	"database/sql/driver"
	"math"
	"sort"
	"strings"
	"time"
)

// Student is one roster record. Composite fields are stored as JSONB.
type Student struct {
	ID              string            `db:"id" json:"id"`
	Name            string            `db:"name" json:"name"`
	Grade           string            `db:"grade" json:"grade"`
	Admissions      AdmissionList     `db:"admissions" json:"admissions"`
	Attendance      AttendanceSummary `db:"attendance" json:"attendance"`
	FeeHistory      FeeLedger         `db:"fee_history" json:"fee_history"`
	Results         ResultList        `db:"results" json:"results"`
	PreviousResults TermSnapshotList  `db:"previous_results" json:"previous_results"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// Profile returns the canonical admission record, if any.
func (s Student) Profile() (Admission, bool) {
	if len(s.Admissions) == 0 {
		return Admission{}, false
	}
	return s.Admissions[0], true
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Grade     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalized trims the text filters and clamps paging to 1-based pages of at most 100 rows.
func (f StudentFilter) Normalized() StudentFilter {
	f.Search = strings.TrimSpace(f.Search)
	f.Grade = strings.TrimSpace(f.Grade)
	f.SortBy = strings.ToLower(strings.TrimSpace(f.SortBy))
	f.SortOrder = strings.ToUpper(strings.TrimSpace(f.SortOrder))
	if f.SortOrder != "DESC" {
		f.SortOrder = "ASC"
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize <= 0:
		f.PageSize = defaultPageSize
	case f.PageSize > maxPageSize:
		f.PageSize = maxPageSize
	}
	return f
}

// Offset is the number of rows skipped before the current page.
func (f StudentFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Admission captures the intake form of a student.
type Admission struct {
	Class              string    `json:"class"`
	Guardian           string    `json:"guardian"`
	Contact            string    `json:"contact"`
	Address            string    `json:"address,omitempty"`
	DateOfBirth        string    `json:"date_of_birth,omitempty"`
	PreviousSchool     string    `json:"previous_school,omitempty"`
	PreviousPercentage *int      `json:"previous_percentage,omitempty"`
	PreviousGrade      string    `json:"previous_grade,omitempty"`
	AdmittedAt         time.Time `json:"admitted_at"`
}

// AdmissionList is the JSONB encoded admission history.
type AdmissionList []Admission

// Value implements driver.Valuer.
func (l AdmissionList) Value() (driver.Value, error) {
	if l == nil {
		l = AdmissionList{}
	}
	return jsonValue([]Admission(l), "admissions")
}

// Scan implements sql.Scanner.
func (l *AdmissionList) Scan(value interface{}) error {
	*l = AdmissionList{}
	return scanJSON(value, (*[]Admission)(l), "admissions")
}

// AttendanceStatus represents the status for a marked day.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// AttendanceSummary aggregates marked days. Days is keyed by YYYY-MM-DD.
type AttendanceSummary struct {
	Present int                         `json:"present"`
	Absent  int                         `json:"absent"`
	Late    int                         `json:"late"`
	Total   int                         `json:"total"`
	Days    map[string]AttendanceStatus `json:"days,omitempty"`
}

// Mark records status for date, replacing any earlier mark for the same date.
func (a AttendanceSummary) Mark(date string, status AttendanceStatus) AttendanceSummary {
	days := make(map[string]AttendanceStatus, len(a.Days)+1)
	for k, v := range a.Days {
		days[k] = v
	}
	days[date] = status
	out := AttendanceSummary{Days: days}
	for _, st := range days {
		switch st {
		case AttendancePresent:
			out.Present++
		case AttendanceAbsent:
			out.Absent++
		case AttendanceLate:
			out.Late++
		}
	}
	out.Total = out.Present + out.Absent + out.Late
	return out
}

// Percentage counts late arrivals as attended.
func (a AttendanceSummary) Percentage() int {
	if a.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(a.Present+a.Late) / float64(a.Total) * 100))
}

// Value implements driver.Valuer.
func (a AttendanceSummary) Value() (driver.Value, error) {
	return jsonValue(a, "attendance")
}

// Scan implements sql.Scanner.
func (a *AttendanceSummary) Scan(value interface{}) error {
	*a = AttendanceSummary{}
	return scanJSON(value, a, "attendance")
}

// FeeStatus reports how much of a month is settled.
type FeeStatus string

const (
	FeePaid    FeeStatus = "PAID"
	FeePartial FeeStatus = "PARTIAL"
	FeeUnpaid  FeeStatus = "UNPAID"
)

// FeeRecord is one month of the fee ledger. Month is formatted YYYY-MM.
type FeeRecord struct {
	Month  string     `json:"month"`
	Amount float64    `json:"amount"`
	Paid   float64    `json:"paid"`
	Status FeeStatus  `json:"status"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// Outstanding returns the unpaid remainder, never negative.
func (f FeeRecord) Outstanding() float64 {
	if f.Paid >= f.Amount {
		return 0
	}
	return f.Amount - f.Paid
}

// StatusFor derives the ledger status from amount and paid.
func StatusFor(amount, paid float64) FeeStatus {
	switch {
	case paid <= 0:
		return FeeUnpaid
	case paid >= amount:
		return FeePaid
	default:
		return FeePartial
	}
}

// FeeLedger is the JSONB encoded fee history.
type FeeLedger []FeeRecord

// Value implements driver.Valuer.
func (l FeeLedger) Value() (driver.Value, error) {
	if l == nil {
		l = FeeLedger{}
	}
	return jsonValue([]FeeRecord(l), "fee history")
}

// Scan implements sql.Scanner.
func (l *FeeLedger) Scan(value interface{}) error {
	*l = FeeLedger{}
	return scanJSON(value, (*[]FeeRecord)(l), "fee history")
}

// Sorted returns a copy ordered by month.
func (l FeeLedger) Sorted() FeeLedger {
	out := make(FeeLedger, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
