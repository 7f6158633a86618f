package facerec

import (
	"encoding/json"
	"fmt"
	"sync"

	"facemark-go/internal/core/models"
	"facemark-go/internal/db/repository"
	"facemark-go/internal/util/clock"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// PersonRef identifies a registered person in the store.
type PersonRef struct {
	ID   uint
	Name string
}

// Store is the in-memory registry of known face embeddings.
//
// It is built once at startup from persistence and mutated only through
// Register; it is never re-read mid-run. Embeddings and refs are parallel
// slices: refs[i] owns embeddings[i].
type Store struct {
	repo      repository.Repository
	clk       clock.Clock
	threshold float64

	mu         sync.RWMutex
	embeddings []Embedding
	refs       []PersonRef
}

// NewStore creates an empty store. Call Load before serving match queries.
func NewStore(repo repository.Repository, clk clock.Clock, threshold float64) *Store {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Store{
		repo:      repo,
		clk:       clk,
		threshold: threshold,
	}
}

// Load reads all persisted identities with embeddings into memory.
// Identities without an embedding are skipped; undecodable embeddings are
// logged and skipped rather than aborting startup.
func (s *Store) Load() error {
	people, err := s.repo.GetPeopleWithEmbeddings()
	if err != nil {
		return fmt.Errorf("failed to load identities: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings = s.embeddings[:0]
	s.refs = s.refs[:0]

	for _, person := range people {
		emb, err := decodeEmbedding(person.Embedding)
		if err != nil {
			log.Warnf("Skipping identity %d (%s): %v", person.ID, person.Name, err)
			continue
		}
		s.embeddings = append(s.embeddings, emb)
		s.refs = append(s.refs, PersonRef{ID: person.ID, Name: person.Name})
	}

	log.Infof("Embedding store loaded with %d identities", len(s.refs))
	return nil
}

// Register averages the sample embeddings into one representative vector,
// persists a new identity and appends it to the in-memory cache so it is
// immediately eligible for matching.
func (s *Store) Register(name string, samples []Embedding) (*models.Person, error) {
	avg, err := Average(samples)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(avg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}

	person := &models.Person{
		Name:         name,
		Embedding:    datatypes.JSON(data),
		RegisteredOn: clock.Date(s.clk.Now()),
	}
	if err := s.repo.CreatePerson(person); err != nil {
		return nil, fmt.Errorf("failed to persist identity: %w", err)
	}

	s.mu.Lock()
	s.embeddings = append(s.embeddings, avg)
	s.refs = append(s.refs, PersonRef{ID: person.ID, Name: person.Name})
	s.mu.Unlock()

	log.Infof("Registered identity '%s' (ID %d) from %d samples", name, person.ID, len(samples))
	return person, nil
}

// Match returns the registered person closest to the query embedding along
// with the Euclidean distance. ErrEmptyStore when nothing is registered,
// ErrUnknownFace when the closest identity is not within the threshold
// (strict less-than).
func (s *Store) Match(query Embedding) (PersonRef, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.embeddings) == 0 {
		return PersonRef{}, 0, ErrEmptyStore
	}

	index, distance, ok := FindBestMatch(query, s.embeddings)
	if !ok {
		return PersonRef{}, 0, ErrEmptyStore
	}
	if distance >= s.threshold {
		return PersonRef{}, distance, ErrUnknownFace
	}
	return s.refs[index], distance, nil
}

// Size returns the number of identities currently in the store.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs)
}

func decodeEmbedding(data datatypes.JSON) (Embedding, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	var emb Embedding
	if err := json.Unmarshal(data, &emb); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	if len(emb) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	return emb, nil
}
