package attendance

import (
	"errors"
	"fmt"
	"time"

	"facemark-go/internal/core/models"
	"facemark-go/internal/db/repository"
	"facemark-go/internal/util/clock"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Engine decides whether a recognized face results in a ledger entry.
//
// All timing decisions go through the injected clock so the window rules can
// be tested without waiting on the wall clock.
type Engine struct {
	repo            repository.Repository
	clk             clock.Clock
	defaultDuration int // minutes
}

// NewEngine creates a decision engine. defaultDurationMinutes applies to
// newly created sessions; zero or negative falls back to 10.
func NewEngine(repo repository.Repository, clk clock.Clock, defaultDurationMinutes int) *Engine {
	if defaultDurationMinutes <= 0 {
		defaultDurationMinutes = 10
	}
	return &Engine{
		repo:            repo,
		clk:             clk,
		defaultDuration: defaultDurationMinutes,
	}
}

// CreateSession stores a new session. The start instant is captured from the
// clock here and nowhere else. (Name, Subject) must be unique;
// ErrSessionExists otherwise.
func (e *Engine) CreateSession(name, subject string) (*models.Session, error) {
	session := &models.Session{
		Name:            name,
		Subject:         subject,
		StartedAt:       e.clk.Now(),
		DurationMinutes: e.defaultDuration,
	}
	if err := e.repo.CreateSession(session); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSessionExists
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Infof("Session '%s' for subject '%s' created at %s", name, subject,
		session.StartedAt.Format(clock.TimeLayout))
	return session, nil
}

// Mark runs the decision sequence for one recognized person against the
// session addressed by (sessionName, subject):
//
//  1. resolve the session by its composite key,
//  2. reject if the marking window has passed (full-timestamp comparison, so
//     sessions spanning midnight behave correctly),
//  3. reject if a ledger row already exists for (person, session, today),
//  4. append a "Present" row.
//
// The ledger's unique index is the authoritative duplicate guard: a
// concurrent writer that slips past the existence check surfaces as
// ErrDuplicateAttendance here, not as a second row.
func (e *Engine) Mark(personID uint, sessionName, subject string) (*models.AttendanceRecord, error) {
	session, err := e.repo.FindSession(sessionName, subject)
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	now := e.clk.Now()
	window := time.Duration(session.DurationMinutes) * time.Minute
	if now.Sub(session.StartedAt) > window {
		return nil, ErrSessionWindowExpired
	}

	date := clock.Date(now)
	marked, err := e.repo.HasAttendance(personID, session.ID, date)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if marked {
		return nil, ErrDuplicateAttendance
	}

	record := &models.AttendanceRecord{
		PersonID:  personID,
		SessionID: session.ID,
		Date:      date,
		Time:      clock.TimeOfDay(now),
		Status:    models.StatusPresent,
	}
	if err := e.repo.CreateAttendance(record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateAttendance
		}
		return nil, fmt.Errorf("failed to write attendance record: %w", err)
	}

	log.WithFields(log.Fields{
		"person_id": personID,
		"session":   sessionName,
		"subject":   subject,
		"date":      record.Date,
		"time":      record.Time,
	}).Info("Attendance marked")

	return record, nil
}

// Report returns the denormalized attendance view, newest entries first.
func (e *Engine) Report() ([]models.ReportRow, error) {
	return e.repo.GetReport()
}
