package facerec

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

func newTestRepo(t *testing.T) repository.Repository {
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

	return repository.NewSQLiteRepository(db)
}

func newTestStore(t *testing.T) (*Store, repository.Repository) {
	t.Helper()
	repo := newTestRepo(t)
	clk := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	return NewStore(repo, clk, DefaultMatchThreshold), repo
}

func TestRegisterStoresAveragedEmbedding(t *testing.T) {
	store, repo := newTestStore(t)

	samples := []Embedding{
		{0.0, 0.0},
		{1.0, 2.0},
	}
	person, err := store.Register("alice", samples)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", person.RegisteredOn)

	people, err := repo.GetPeopleWithEmbeddings()
	require.NoError(t, err)
	require.Len(t, people, 1)

	emb, err := decodeEmbedding(people[0].Embedding)
	require.NoError(t, err)
	assert.Equal(t, Embedding{0.5, 1.0}, emb)
}

func TestRegisterIsImmediatelyMatchable(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Register("bob", []Embedding{{0.1, 0.2}})
	require.NoError(t, err)

	ref, distance, err := store.Match(Embedding{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, "bob", ref.Name)
	assert.InDelta(t, 0.0, distance, 1e-9)
	assert.Equal(t, 1, store.Size())
}

func TestMatchEmptyStore(t *testing.T) {
	store, _ := newTestStore(t)

	_, _, err := store.Match(Embedding{0.1, 0.2})
	assert.ErrorIs(t, err, ErrEmptyStore)
}

func TestMatchThresholdIsStrict(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Register("carol", []Embedding{{0.0}})
	require.NoError(t, err)

	// Distance exactly at the threshold is rejected
	_, distance, err := store.Match(Embedding{0.6})
	assert.ErrorIs(t, err, ErrUnknownFace)
	assert.InDelta(t, 0.6, distance, 1e-9)

	// Just inside the threshold is accepted
	ref, distance, err := store.Match(Embedding{0.599999})
	require.NoError(t, err)
	assert.Equal(t, "carol", ref.Name)
	assert.InDelta(t, 0.599999, distance, 1e-9)
}

func TestLoadSkipsIdentitiesWithoutEmbedding(t *testing.T) {
	store, repo := newTestStore(t)

	// One identity registered without an embedding (e.g. created manually)
	require.NoError(t, repo.CreatePerson(&models.Person{Name: "no-embedding", RegisteredOn: "2026-03-01"}))

	_, err := store.Register("dave", []Embedding{{0.3, 0.4}})
	require.NoError(t, err)

	// Rebuild from persistence: only the identity with an embedding survives
	require.NoError(t, store.Load())
	assert.Equal(t, 1, store.Size())

	ref, _, err := store.Match(Embedding{0.3, 0.4})
	require.NoError(t, err)
	assert.Equal(t, "dave", ref.Name)
}
