package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttendanceStatus values written to the ledger. Only "Present" is produced
// today; the column is kept open for future statuses.
const StatusPresent = "Present"

// Person represents a registered identity with its face embedding.
//
// The embedding is immutable once registered: re-registering someone creates
// a new Person record rather than updating this one, so there is no unique
// index on Name. Embedding may be null for identities created before an
// embedding was captured; those are skipped when the in-memory store loads.
type Person struct {
	gorm.Model
	Name         string         `gorm:"index;not null"`
	Embedding    datatypes.JSON `gorm:"type:json"` // JSON array of 128 float64 components, null if absent
	RegisteredOn string         `gorm:"size:10"`   // YYYY-MM-DD
}

// Session represents a named attendance window for a subject.
//
// StartedAt is captured from the wall clock when the session is created and
// never changes. (Name, Subject) is the lookup key used when marking
// attendance, so it carries a composite unique index.
type Session struct {
	gorm.Model
	Name            string    `gorm:"uniqueIndex:idx_sessions_name_subject;not null"`
	Subject         string    `gorm:"uniqueIndex:idx_sessions_name_subject;not null"`
	StartedAt       time.Time `gorm:"index;not null"`
	DurationMinutes int       `gorm:"default:10"`
}

// AttendanceRecord is one row of the append-only attendance ledger.
//
// The composite unique index on (person_id, session_id, date) is the
// authoritative duplicate guard: the engine's check-then-insert is racy
// across processes, the constraint is not.
type AttendanceRecord struct {
	gorm.Model
	PersonID  uint    `gorm:"uniqueIndex:idx_attendance_person_session_date;not null"`
	SessionID uint    `gorm:"uniqueIndex:idx_attendance_person_session_date;not null"`
	Date      string  `gorm:"uniqueIndex:idx_attendance_person_session_date;size:10;not null"` // YYYY-MM-DD
	Time      string  `gorm:"size:8;not null"`                                                 // HH:MM:SS
	Status    string  `gorm:"not null"`
	Person    Person  `gorm:"foreignKey:PersonID"`
	Session   Session `gorm:"foreignKey:SessionID"`
}

// ReportRow is the denormalized read-only projection of the ledger joined
// with person and session details.
type ReportRow struct {
	PersonName  string `json:"person_name"`
	SessionName string `json:"session_name"`
	Subject     string `json:"subject"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      string `json:"status"`
}

// Statistics summarizes the stored data for the status endpoint.
type Statistics struct {
	PersonCount     int64 `json:"person_count"`
	SessionCount    int64 `json:"session_count"`
	AttendanceCount int64 `json:"attendance_count"`
}
