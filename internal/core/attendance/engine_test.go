package attendance

import (
	"testing"
	"time"

	"facemark-go/internal/core/models"
	"facemark-go/internal/db/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestEngine(t *testing.T) (*Engine, repository.Repository, *fakeClock) {
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

	repo := repository.NewSQLiteRepository(db)
	clk := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	return NewEngine(repo, clk, 10), repo, clk
}

func newTestPerson(t *testing.T, repo repository.Repository, name string) *models.Person {
	t.Helper()
	person := &models.Person{Name: name, RegisteredOn: "2026-03-01"}
	require.NoError(t, repo.CreatePerson(person))
	return person
}

func TestCreateSessionCapturesStartFromClock(t *testing.T) {
	engine, _, clk := newTestEngine(t)

	session, err := engine.CreateSession("morning-lecture", "calculus")
	require.NoError(t, err)
	assert.True(t, session.StartedAt.Equal(clk.now))
	assert.Equal(t, 10, session.DurationMinutes)
}

func TestCreateSessionRejectsDuplicateKey(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.CreateSession("morning-lecture", "calculus")
	require.NoError(t, err)

	_, err = engine.CreateSession("morning-lecture", "calculus")
	assert.ErrorIs(t, err, ErrSessionExists)

	// Same name under a different subject is a different session
	_, err = engine.CreateSession("morning-lecture", "physics")
	assert.NoError(t, err)
}

func TestMarkWritesPresentRecord(t *testing.T) {
	engine, repo, clk := newTestEngine(t)
	person := newTestPerson(t, repo, "alice")

	_, err := engine.CreateSession("morning-lecture", "calculus")
	require.NoError(t, err)

	clk.advance(5 * time.Minute)

	record, err := engine.Mark(person.ID, "morning-lecture", "calculus")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, record.Status)
	assert.Equal(t, "2026-03-02", record.Date)
	assert.Equal(t, "09:05:00", record.Time)
}

func TestMarkUnknownSession(t *testing.T) {
	engine, repo, _ := newTestEngine(t)
	person := newTestPerson(t, repo, "alice")

	_, err := engine.Mark(person.ID, "missing", "calculus")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMarkWindowEnforcement(t *testing.T) {
	engine, repo, clk := newTestEngine(t)
	early := newTestPerson(t, repo, "early")
	late := newTestPerson(t, repo, "late")

	_, err := engine.CreateSession("morning-lecture", "calculus")
	require.NoError(t, err)

	// 9 minutes 59 seconds after start: inside the 10-minute window
	clk.advance(9*time.Minute + 59*time.Second)
	_, err = engine.Mark(early.ID, "morning-lecture", "calculus")
	assert.NoError(t, err)

	// 10 minutes 1 second after start: window has passed
	clk.advance(2 * time.Second)
	_, err = engine.Mark(late.ID, "morning-lecture", "calculus")
	assert.ErrorIs(t, err, ErrSessionWindowExpired)
}

func TestMarkDuplicatePrevention(t *testing.T) {
	engine, repo, _ := newTestEngine(t)
	person := newTestPerson(t, repo, "alice")

	session, err := engine.CreateSession("morning-lecture", "calculus")
	require.NoError(t, err)

	_, err = engine.Mark(person.ID, "morning-lecture", "calculus")
	require.NoError(t, err)

	_, err = engine.Mark(person.ID, "morning-lecture", "calculus")
	assert.ErrorIs(t, err, ErrDuplicateAttendance)

	// Exactly one ledger row for the (person, session, date) triple
	marked, err := repo.HasAttendance(person.ID, session.ID, "2026-03-02")
	require.NoError(t, err)
	assert.True(t, marked)

	report, err := engine.Report()
	require.NoError(t, err)
	assert.Len(t, report, 1)
}

func TestMarkMapsConstraintViolationToDuplicate(t *testing.T) {
	engine, repo, clk := newTestEngine(t)
	person := newTestPerson(t, repo, "alice")

	session, err := engine.CreateSession("morning-lecture", "calculus")
	require.NoError(t, err)

	// Simulate a concurrent writer that slipped past the existence check:
	// the row appears after the check would have run
	require.NoError(t, repo.CreateAttendance(&models.AttendanceRecord{
		PersonID:  person.ID,
		SessionID: session.ID,
		Date:      "2026-03-02",
		Time:      "09:00:30",
		Status:    models.StatusPresent,
	}))

	clk.advance(time.Minute)
	err = repo.CreateAttendance(&models.AttendanceRecord{
		PersonID:  person.ID,
		SessionID: session.ID,
		Date:      "2026-03-02",
		Time:      "09:01:00",
		Status:    models.StatusPresent,
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
