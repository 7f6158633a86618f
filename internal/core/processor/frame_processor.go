package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"facemark-go/internal/core/attendance"
	"facemark-go/internal/core/facerec"
	"facemark-go/internal/integrations/mqtt"
	"facemark-go/internal/integrations/recognizer"
	"facemark-go/internal/server/sse"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Outcome labels for a single processed face.
const (
	OutcomeAccepted      = "accepted"
	OutcomeUnknownFace   = "unknown_face"
	OutcomeEmptyStore    = "empty_store"
	OutcomeAlreadyMarked = "already_marked"
	OutcomeNoSession     = "session_not_found"
	OutcomeWindowExpired = "window_expired"
	OutcomeError         = "error"
)

// FaceOutcome is the decision result for one detected face in a frame.
type FaceOutcome struct {
	PersonID   uint    `json:"person_id,omitempty"`
	PersonName string  `json:"person_name,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
	Outcome    string  `json:"outcome"`
	Date       string  `json:"date,omitempty"`
	Time       string  `json:"time,omitempty"`
}

// CaptureRun is one continuous attendance-taking pass for a session. It
// carries the in-memory "already processed" set that short-circuits repeated
// detections of the same person between frames. That set is purely a
// performance optimization; the ledger's duplicate check stays authoritative.
type CaptureRun struct {
	ID          string    `json:"id"`
	SessionName string    `json:"session_name"`
	Subject     string    `json:"subject"`
	StartedAt   time.Time `json:"started_at"`

	mu     sync.Mutex
	marked map[uint]bool
}

func (r *CaptureRun) alreadyMarked(personID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marked[personID]
}

func (r *CaptureRun) rememberMarked(personID uint) {
	r.mu.Lock()
	r.marked[personID] = true
	r.mu.Unlock()
}

// FrameProcessor turns camera frames into attendance decisions: detect and
// encode faces via the external recognizer, match each embedding against the
// store, and run the decision engine per recognized person.
type FrameProcessor struct {
	store      *facerec.Store
	engine     *attendance.Engine
	recognizer *recognizer.Client
	hub        *sse.Hub
	mqttClient *mqtt.Client
	frameDir   string

	pool *WorkerPool

	runsMu sync.RWMutex
	runs   map[string]*CaptureRun
}

// NewFrameProcessor wires the processing pipeline. hub and mqttClient may be
// nil; frameDir empty disables the audit copies.
func NewFrameProcessor(store *facerec.Store, engine *attendance.Engine, rec *recognizer.Client,
	hub *sse.Hub, mqttClient *mqtt.Client, frameDir string) *FrameProcessor {

	p := &FrameProcessor{
		store:      store,
		engine:     engine,
		recognizer: rec,
		hub:        hub,
		mqttClient: mqttClient,
		frameDir:   frameDir,
		runs:       make(map[string]*CaptureRun),
	}
	p.pool = NewWorkerPool(p)
	return p
}

// Pool exposes the worker pool for status reporting.
func (p *FrameProcessor) Pool() *WorkerPool {
	return p.pool
}

// StartRun opens a new capture run for the given session key.
func (p *FrameProcessor) StartRun(sessionName, subject string) *CaptureRun {
	run := &CaptureRun{
		ID:          uuid.NewString(),
		SessionName: sessionName,
		Subject:     subject,
		StartedAt:   time.Now(),
		marked:      make(map[uint]bool),
	}

	p.runsMu.Lock()
	p.runs[run.ID] = run
	p.runsMu.Unlock()

	log.Infof("Capture run %s started for session '%s' (%s)", run.ID, sessionName, subject)
	return run
}

// GetRun returns the capture run with the given id, or nil.
func (p *FrameProcessor) GetRun(id string) *CaptureRun {
	p.runsMu.RLock()
	defer p.runsMu.RUnlock()
	return p.runs[id]
}

// ProcessFrame submits a frame to the worker pool and waits for its outcomes.
func (p *FrameProcessor) ProcessFrame(ctx context.Context, run *CaptureRun, imageData []byte, filename string) ([]FaceOutcome, error) {
	return p.pool.ProcessFrame(ctx, run, imageData, filename)
}

// processFrameInternal does the actual per-frame work. Called from pool
// workers.
func (p *FrameProcessor) processFrameInternal(ctx context.Context, run *CaptureRun, imageData []byte, filename string) ([]FaceOutcome, error) {
	p.saveAuditCopy(run, imageData, filename)

	observations, err := p.recognizer.Detect(ctx, imageData, filename)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	outcomes := make([]FaceOutcome, 0, len(observations))
	for _, obs := range observations {
		outcome := p.decideFace(run, obs.Embedding)
		outcomes = append(outcomes, outcome)
		p.publishOutcome(run, outcome)
	}

	return outcomes, nil
}

// DecideEmbedding runs the match-and-mark sequence for one pre-encoded
// embedding. Used both by the frame path and by edge devices that submit
// embeddings directly.
func (p *FrameProcessor) DecideEmbedding(run *CaptureRun, emb facerec.Embedding) FaceOutcome {
	outcome := p.decideFace(run, emb)
	p.publishOutcome(run, outcome)
	return outcome
}

func (p *FrameProcessor) decideFace(run *CaptureRun, emb facerec.Embedding) FaceOutcome {
	ref, distance, err := p.store.Match(emb)
	if err != nil {
		switch {
		case errors.Is(err, facerec.ErrEmptyStore):
			return FaceOutcome{Outcome: OutcomeEmptyStore}
		case errors.Is(err, facerec.ErrUnknownFace):
			return FaceOutcome{Distance: distance, Outcome: OutcomeUnknownFace}
		default:
			log.Errorf("Match failed: %v", err)
			return FaceOutcome{Outcome: OutcomeError}
		}
	}

	outcome := FaceOutcome{
		PersonID:   ref.ID,
		PersonName: ref.Name,
		Distance:   distance,
	}

	// In-run short-circuit: skip the ledger round-trip for people this run
	// has already handled
	if run.alreadyMarked(ref.ID) {
		outcome.Outcome = OutcomeAlreadyMarked
		return outcome
	}

	record, err := p.engine.Mark(ref.ID, run.SessionName, run.Subject)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrSessionNotFound):
			outcome.Outcome = OutcomeNoSession
		case errors.Is(err, attendance.ErrSessionWindowExpired):
			outcome.Outcome = OutcomeWindowExpired
		case errors.Is(err, attendance.ErrDuplicateAttendance):
			// Already in the ledger (e.g. an earlier run today); remember it
			// so this run stops querying for them
			run.rememberMarked(ref.ID)
			outcome.Outcome = OutcomeAlreadyMarked
		default:
			log.Errorf("Attendance decision failed for person %d: %v", ref.ID, err)
			outcome.Outcome = OutcomeError
		}
		return outcome
	}

	run.rememberMarked(ref.ID)
	outcome.Outcome = OutcomeAccepted
	outcome.Date = record.Date
	outcome.Time = record.Time
	return outcome
}

// publishOutcome fans an outcome out to the SSE hub and, for accepted marks,
// the MQTT topic. Neither sink failing affects the decision.
func (p *FrameProcessor) publishOutcome(run *CaptureRun, outcome FaceOutcome) {
	if p.hub != nil {
		p.hub.BroadcastAttendanceEvent(sse.AttendanceEventData{
			PersonID:    outcome.PersonID,
			PersonName:  outcome.PersonName,
			SessionName: run.SessionName,
			Subject:     run.Subject,
			Date:        outcome.Date,
			Time:        outcome.Time,
			Status:      outcome.statusOrEmpty(),
			Distance:    outcome.Distance,
			Outcome:     outcome.Outcome,
		})
	}

	if outcome.Outcome == OutcomeAccepted && p.mqttClient != nil {
		event := mqtt.AttendanceEvent{
			PersonID:    outcome.PersonID,
			PersonName:  outcome.PersonName,
			SessionName: run.SessionName,
			Subject:     run.Subject,
			Date:        outcome.Date,
			Time:        outcome.Time,
			Status:      outcome.statusOrEmpty(),
			Distance:    outcome.Distance,
		}
		if err := p.mqttClient.PublishAttendance(event); err != nil {
			log.Warnf("Failed to publish attendance event: %v", err)
		}
	}
}

func (o FaceOutcome) statusOrEmpty() string {
	if o.Outcome == OutcomeAccepted {
		return "Present"
	}
	return ""
}

// saveAuditCopy writes the frame under the audit directory. Failures are
// logged only; audit copies never block a decision.
func (p *FrameProcessor) saveAuditCopy(run *CaptureRun, imageData []byte, filename string) {
	if p.frameDir == "" {
		return
	}

	name := fmt.Sprintf("%s_%s_%s", time.Now().Format("20060102_150405"), run.ID, filepath.Base(filename))
	path := filepath.Join(p.frameDir, name)
	if err := os.WriteFile(path, imageData, 0644); err != nil {
		log.Warnf("Failed to save audit frame %s: %v", path, err)
	}
}
