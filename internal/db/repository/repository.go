package repository

import (
	"errors"

	"facemark-go/internal/core/models"

	"gorm.io/gorm"
)

// Repository defines the persistence operations used by the attendance core.
type Repository interface {
	// Person methods
	GetPersonByID(id uint) (*models.Person, error)
	GetPeople() ([]models.Person, error)
	GetPeopleWithEmbeddings() ([]models.Person, error)
	CreatePerson(person *models.Person) error

	// Session methods
	CreateSession(session *models.Session) error
	GetSessionByID(id uint) (*models.Session, error)
	GetSessions() ([]models.Session, error)
	FindSession(name, subject string) (*models.Session, error)

	// Attendance methods
	HasAttendance(personID, sessionID uint, date string) (bool, error)
	CreateAttendance(record *models.AttendanceRecord) error
	GetReport() ([]models.ReportRow, error)

	// Statistics
	GetStatistics() (models.Statistics, error)
}

// SQLiteRepository implements Repository on top of GORM/SQLite.
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a new SQLite repository instance.
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Person methods

// GetPersonByID fetches a person by primary key. Not found is (nil, nil).
func (r *SQLiteRepository) GetPersonByID(id uint) (*models.Person, error) {
	var person models.Person
	result := r.db.First(&person, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &person, nil
}

// GetPeople fetches all registered people.
func (r *SQLiteRepository) GetPeople() ([]models.Person, error) {
	var people []models.Person
	result := r.db.Order("id ASC").Find(&people)
	if result.Error != nil {
		return nil, result.Error
	}
	return people, nil
}

// GetPeopleWithEmbeddings fetches people that carry an embedding, in
// registration order. This is the startup projection for the in-memory store.
func (r *SQLiteRepository) GetPeopleWithEmbeddings() ([]models.Person, error) {
	var people []models.Person
	result := r.db.Where("embedding IS NOT NULL").Order("id ASC").Find(&people)
	if result.Error != nil {
		return nil, result.Error
	}
	return people, nil
}

// CreatePerson persists a new person record.
func (r *SQLiteRepository) CreatePerson(person *models.Person) error {
	return r.db.Create(person).Error
}

// Session methods

// CreateSession persists a new session. A duplicate (name, subject) pair
// surfaces as gorm.ErrDuplicatedKey via the unique index.
func (r *SQLiteRepository) CreateSession(session *models.Session) error {
	return r.db.Create(session).Error
}

// GetSessionByID fetches a session by primary key. Not found is (nil, nil).
func (r *SQLiteRepository) GetSessionByID(id uint) (*models.Session, error) {
	var session models.Session
	result := r.db.First(&session, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &session, nil
}

// GetSessions fetches all sessions, newest first.
func (r *SQLiteRepository) GetSessions() ([]models.Session, error) {
	var sessions []models.Session
	result := r.db.Order("started_at DESC").Find(&sessions)
	if result.Error != nil {
		return nil, result.Error
	}
	return sessions, nil
}

// FindSession looks up a session by its (name, subject) composite key.
// Ordered by id so the result is deterministic. Not found is (nil, nil).
func (r *SQLiteRepository) FindSession(name, subject string) (*models.Session, error) {
	var session models.Session
	result := r.db.Where("name = ? AND subject = ?", name, subject).Order("id ASC").First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &session, nil
}

// Attendance methods

// HasAttendance reports whether a ledger row exists for the given
// (person, session, date) triple.
func (r *SQLiteRepository) HasAttendance(personID, sessionID uint, date string) (bool, error) {
	var count int64
	result := r.db.Model(&models.AttendanceRecord{}).
		Where("person_id = ? AND session_id = ? AND date = ?", personID, sessionID, date).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// CreateAttendance appends a row to the ledger. A duplicate
// (person, session, date) triple surfaces as gorm.ErrDuplicatedKey.
func (r *SQLiteRepository) CreateAttendance(record *models.AttendanceRecord) error {
	return r.db.Create(record).Error
}

// GetReport returns the denormalized attendance view, ordered by date
// descending then time descending.
func (r *SQLiteRepository) GetReport() ([]models.ReportRow, error) {
	var rows []models.ReportRow
	result := r.db.Table("attendance_records AS a").
		Select("p.name AS person_name, s.name AS session_name, s.subject AS subject, a.date AS date, a.time AS time, a.status AS status").
		Joins("JOIN people p ON a.person_id = p.id").
		Joins("JOIN sessions s ON a.session_id = s.id").
		Order("a.date DESC, a.time DESC").
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return rows, nil
}

// Statistics methods

// GetStatistics returns counts over the stored data.
func (r *SQLiteRepository) GetStatistics() (models.Statistics, error) {
	var stats models.Statistics

	if err := r.db.Model(&models.Person{}).Count(&stats.PersonCount).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.Session{}).Count(&stats.SessionCount).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.AttendanceRecord{}).Count(&stats.AttendanceCount).Error; err != nil {
		return stats, err
	}

	return stats, nil
}
