package processor

import (
	"testing"
	"time"

	"facemark-go/internal/core/attendance"
	"facemark-go/internal/core/facerec"
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

func newTestProcessor(t *testing.T) (*FrameProcessor, *facerec.Store, *attendance.Engine) {
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
	store := facerec.NewStore(repo, clk, facerec.DefaultMatchThreshold)
	engine := attendance.NewEngine(repo, clk, 10)

	proc := NewFrameProcessor(store, engine, nil, nil, nil, "")
	t.Cleanup(proc.Pool().Shutdown)

	return proc, store, engine
}

func TestDecideEmbeddingAcceptsThenShortCircuits(t *testing.T) {
	proc, store, engine := newTestProcessor(t)

	_, err := store.Register("alice", []facerec.Embedding{{0.1, 0.2}})
	require.NoError(t, err)
	_, err = engine.CreateSession("lecture-1", "calculus")
	require.NoError(t, err)

	run := proc.StartRun("lecture-1", "calculus")

	first := proc.DecideEmbedding(run, facerec.Embedding{0.1, 0.2})
	assert.Equal(t, OutcomeAccepted, first.Outcome)
	assert.Equal(t, "alice", first.PersonName)
	assert.Equal(t, "2026-03-02", first.Date)

	// Repeated detection within the same run never reaches the ledger again
	second := proc.DecideEmbedding(run, facerec.Embedding{0.1, 0.2})
	assert.Equal(t, OutcomeAlreadyMarked, second.Outcome)
}

func TestDecideEmbeddingAcrossRunsStaysDeduplicated(t *testing.T) {
	proc, store, engine := newTestProcessor(t)

	_, err := store.Register("alice", []facerec.Embedding{{0.1, 0.2}})
	require.NoError(t, err)
	_, err = engine.CreateSession("lecture-1", "calculus")
	require.NoError(t, err)

	first := proc.DecideEmbedding(proc.StartRun("lecture-1", "calculus"), facerec.Embedding{0.1, 0.2})
	require.Equal(t, OutcomeAccepted, first.Outcome)

	// A fresh run has an empty in-memory set; the ledger still rejects
	second := proc.DecideEmbedding(proc.StartRun("lecture-1", "calculus"), facerec.Embedding{0.1, 0.2})
	assert.Equal(t, OutcomeAlreadyMarked, second.Outcome)
}

func TestDecideEmbeddingUnknownFace(t *testing.T) {
	proc, store, engine := newTestProcessor(t)

	_, err := store.Register("alice", []facerec.Embedding{{0.0, 0.0}})
	require.NoError(t, err)
	_, err = engine.CreateSession("lecture-1", "calculus")
	require.NoError(t, err)

	run := proc.StartRun("lecture-1", "calculus")
	outcome := proc.DecideEmbedding(run, facerec.Embedding{5.0, 5.0})
	assert.Equal(t, OutcomeUnknownFace, outcome.Outcome)
	assert.Zero(t, outcome.PersonID)
}

func TestDecideEmbeddingEmptyStore(t *testing.T) {
	proc, _, engine := newTestProcessor(t)

	_, err := engine.CreateSession("lecture-1", "calculus")
	require.NoError(t, err)

	run := proc.StartRun("lecture-1", "calculus")
	outcome := proc.DecideEmbedding(run, facerec.Embedding{0.1, 0.2})
	assert.Equal(t, OutcomeEmptyStore, outcome.Outcome)
}

func TestDecideEmbeddingMissingSession(t *testing.T) {
	proc, store, _ := newTestProcessor(t)

	_, err := store.Register("alice", []facerec.Embedding{{0.1, 0.2}})
	require.NoError(t, err)

	run := proc.StartRun("ghost-session", "calculus")
	outcome := proc.DecideEmbedding(run, facerec.Embedding{0.1, 0.2})
	assert.Equal(t, OutcomeNoSession, outcome.Outcome)
}
