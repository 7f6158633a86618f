package repository

import (
	"testing"
	"time"

	"facemark-go/internal/core/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlog.Default.LogMode(gormlog.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Person{},
		&models.Session{},
		&models.AttendanceRecord{},
	))

	return NewSQLiteRepository(db)
}

func TestFindSessionCompositeKey(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.CreateSession(&models.Session{
		Name: "lecture-1", Subject: "calculus", StartedAt: time.Now(), DurationMinutes: 10,
	}))
	require.NoError(t, repo.CreateSession(&models.Session{
		Name: "lecture-1", Subject: "physics", StartedAt: time.Now(), DurationMinutes: 10,
	}))

	session, err := repo.FindSession("lecture-1", "physics")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "physics", session.Subject)

	missing, err := repo.FindSession("lecture-2", "physics")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionCompositeKeyUnique(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.CreateSession(&models.Session{
		Name: "lecture-1", Subject: "calculus", StartedAt: time.Now(), DurationMinutes: 10,
	}))

	err := repo.CreateSession(&models.Session{
		Name: "lecture-1", Subject: "calculus", StartedAt: time.Now(), DurationMinutes: 10,
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestAttendanceUniqueConstraint(t *testing.T) {
	repo := newTestRepository(t)

	person := &models.Person{Name: "alice", RegisteredOn: "2026-03-01"}
	require.NoError(t, repo.CreatePerson(person))
	session := &models.Session{Name: "lecture-1", Subject: "calculus", StartedAt: time.Now(), DurationMinutes: 10}
	require.NoError(t, repo.CreateSession(session))

	require.NoError(t, repo.CreateAttendance(&models.AttendanceRecord{
		PersonID: person.ID, SessionID: session.ID, Date: "2026-03-02", Time: "09:00:00", Status: models.StatusPresent,
	}))

	// Same triple again must hit the unique index
	err := repo.CreateAttendance(&models.AttendanceRecord{
		PersonID: person.ID, SessionID: session.ID, Date: "2026-03-02", Time: "09:05:00", Status: models.StatusPresent,
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// A different date is a fresh mark
	err = repo.CreateAttendance(&models.AttendanceRecord{
		PersonID: person.ID, SessionID: session.ID, Date: "2026-03-03", Time: "09:00:00", Status: models.StatusPresent,
	})
	assert.NoError(t, err)
}

func TestReportOrderedByDateThenTimeDescending(t *testing.T) {
	repo := newTestRepository(t)

	alice := &models.Person{Name: "alice", RegisteredOn: "2026-03-01"}
	bob := &models.Person{Name: "bob", RegisteredOn: "2026-03-01"}
	require.NoError(t, repo.CreatePerson(alice))
	require.NoError(t, repo.CreatePerson(bob))
	session := &models.Session{Name: "lecture-1", Subject: "calculus", StartedAt: time.Now(), DurationMinutes: 10}
	require.NoError(t, repo.CreateSession(session))

	records := []models.AttendanceRecord{
		{PersonID: alice.ID, SessionID: session.ID, Date: "2026-03-01", Time: "09:00:00", Status: models.StatusPresent},
		{PersonID: alice.ID, SessionID: session.ID, Date: "2026-03-02", Time: "09:00:00", Status: models.StatusPresent},
		{PersonID: bob.ID, SessionID: session.ID, Date: "2026-03-02", Time: "09:04:00", Status: models.StatusPresent},
	}
	for i := range records {
		require.NoError(t, repo.CreateAttendance(&records[i]))
	}

	rows, err := repo.GetReport()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "2026-03-02", rows[0].Date)
	assert.Equal(t, "09:04:00", rows[0].Time)
	assert.Equal(t, "bob", rows[0].PersonName)

	assert.Equal(t, "2026-03-02", rows[1].Date)
	assert.Equal(t, "09:00:00", rows[1].Time)
	assert.Equal(t, "alice", rows[1].PersonName)

	assert.Equal(t, "2026-03-01", rows[2].Date)

	for _, row := range rows {
		assert.Equal(t, "lecture-1", row.SessionName)
		assert.Equal(t, "calculus", row.Subject)
	}
}

func TestGetPeopleWithEmbeddingsSkipsNull(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.CreatePerson(&models.Person{Name: "no-embedding", RegisteredOn: "2026-03-01"}))
	require.NoError(t, repo.CreatePerson(&models.Person{
		Name: "with-embedding", RegisteredOn: "2026-03-01", Embedding: []byte("[0.1,0.2]"),
	}))

	people, err := repo.GetPeopleWithEmbeddings()
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "with-embedding", people[0].Name)
}

func TestGetStatisticsCounts(t *testing.T) {
	repo := newTestRepository(t)

	person := &models.Person{Name: "alice", RegisteredOn: "2026-03-01"}
	require.NoError(t, repo.CreatePerson(person))
	session := &models.Session{Name: "lecture-1", Subject: "calculus", StartedAt: time.Now(), DurationMinutes: 10}
	require.NoError(t, repo.CreateSession(session))
	require.NoError(t, repo.CreateAttendance(&models.AttendanceRecord{
		PersonID: person.ID, SessionID: session.ID, Date: "2026-03-02", Time: "09:00:00", Status: models.StatusPresent,
	}))

	stats, err := repo.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PersonCount)
	assert.Equal(t, int64(1), stats.SessionCount)
	assert.Equal(t, int64(1), stats.AttendanceCount)
}
