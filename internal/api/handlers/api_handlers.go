package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"facemark-go/config"
	"facemark-go/internal/core/attendance"
	"facemark-go/internal/core/facerec"
	"facemark-go/internal/core/processor"
	"facemark-go/internal/db/repository"
	"facemark-go/internal/integrations/recognizer"
	"facemark-go/internal/server/sse"
	"facemark-go/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// APIHandler serves the attendance REST API.
type APIHandler struct {
	cfg        *config.Config
	repo       repository.Repository
	store      *facerec.Store
	engine     *attendance.Engine
	processor  *processor.FrameProcessor
	recognizer *recognizer.Client
	hub        *sse.Hub
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(cfg *config.Config, repo repository.Repository, store *facerec.Store,
	engine *attendance.Engine, proc *processor.FrameProcessor,
	rec *recognizer.Client, hub *sse.Hub) *APIHandler {

	return &APIHandler{
		cfg:        cfg,
		repo:       repo,
		store:      store,
		engine:     engine,
		processor:  proc,
		recognizer: rec,
		hub:        hub,
	}
}

// RegisterRoutes registers all API routes.
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Session endpoints
	router.POST("/sessions", h.CreateSession)
	router.GET("/sessions", h.ListSessions)
	router.GET("/sessions/:id", h.GetSession)

	// People endpoints
	router.GET("/people", h.ListPeople)
	router.POST("/people", h.RegisterPerson)

	// Attendance endpoints
	router.POST("/attendance/runs", h.StartCaptureRun)
	router.POST("/attendance/runs/:id/frames", h.ProcessFrame)
	router.POST("/attendance/marks", h.MarkFromEmbedding)
	router.GET("/attendance/report", h.GetReport)

	// System endpoints
	router.GET("/status", h.GetStatus)
	router.GET("/events", h.Events)
}

type createSessionRequest struct {
	Name    string `json:"name" binding:"required"`
	Subject string `json:"subject" binding:"required"`
}

// CreateSession creates a new session. The start time is captured from the
// wall clock here; it is never a client input.
func (h *APIHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid session data: %v", err)})
		return
	}

	session, err := h.engine.CreateSession(req.Name, req.Subject)
	if err != nil {
		if errors.Is(err, attendance.ErrSessionExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Session with this name and subject already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create session: %v", err)})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions returns all sessions.
func (h *APIHandler) ListSessions(c *gin.Context) {
	sessions, err := h.repo.GetSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to fetch sessions: %v", err)})
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// GetSession returns a single session.
func (h *APIHandler) GetSession(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	session, err := h.repo.GetSessionByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to fetch session: %v", err)})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// ListPeople returns all registered people.
func (h *APIHandler) ListPeople(c *gin.Context) {
	people, err := h.repo.GetPeople()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to fetch people: %v", err)})
		return
	}

	c.JSON(http.StatusOK, people)
}

// RegisterPerson registers a new identity from sample images. Each uploaded
// sample goes through the recognizer; the first face per sample contributes
// one embedding and the component-wise mean becomes the stored vector.
func (h *APIHandler) RegisterPerson(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Person name is required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded or invalid form data"})
		return
	}
	files := form.File["samples"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one sample image is required"})
		return
	}

	ctx := c.Request.Context()
	samples := make([]facerec.Embedding, 0, len(files))
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to open sample: %v", err)})
			return
		}
		imageData, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to read sample: %v", err)})
			return
		}

		observations, err := h.recognizer.Detect(ctx, imageData, fileHeader.Filename)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Face detection failed: %v", err)})
			return
		}
		if len(observations) == 0 {
			log.Debugf("No face in sample %s, skipping", fileHeader.Filename)
			continue
		}
		samples = append(samples, observations[0].Embedding)
	}

	if len(samples) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": attendance.ErrNoFaceDetected.Error()})
		return
	}

	person, err := h.store.Register(name, samples)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to register person: %v", err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("Registered '%s' from %d samples", name, len(samples)),
		"person":  person,
	})
}

type startRunRequest struct {
	SessionName string `json:"session_name" binding:"required"`
	Subject     string `json:"subject" binding:"required"`
}

// StartCaptureRun opens a capture run for an existing session.
func (h *APIHandler) StartCaptureRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid run data: %v", err)})
		return
	}

	session, err := h.repo.FindSession(req.SessionName, req.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Session lookup failed: %v", err)})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	run := h.processor.StartRun(req.SessionName, req.Subject)
	c.JSON(http.StatusCreated, run)
}

// ProcessFrame runs one uploaded camera frame through the attendance
// pipeline and returns the per-face outcomes.
func (h *APIHandler) ProcessFrame(c *gin.Context) {
	run := h.processor.GetRun(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Capture run not found"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded or invalid form data"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to read frame data: %v", err)})
		return
	}

	outcomes, err := h.processor.ProcessFrame(c.Request.Context(), run, imageData, header.Filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Frame processing failed: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":   run.ID,
		"outcomes": outcomes,
	})
}

type markRequest struct {
	RunID     string            `json:"run_id" binding:"required"`
	Embedding facerec.Embedding `json:"embedding" binding:"required"`
}

// MarkFromEmbedding accepts a pre-encoded embedding from an edge device and
// runs the same match-and-mark decision as the frame path.
func (h *APIHandler) MarkFromEmbedding(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid mark data: %v", err)})
		return
	}

	run := h.processor.GetRun(req.RunID)
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Capture run not found"})
		return
	}

	outcome := h.processor.DecideEmbedding(run, req.Embedding)
	c.JSON(http.StatusOK, outcome)
}

// GetReport returns the denormalized attendance report, newest first.
func (h *APIHandler) GetReport(c *gin.Context) {
	rows, err := h.engine.Report()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to build report: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(rows),
		"entries": rows,
	})
}

// GetStatus reports system health: store size, database counts, recognizer
// reachability and worker pool/system stats.
func (h *APIHandler) GetStatus(c *gin.Context) {
	stats, err := h.repo.GetStatistics()
	if err != nil {
		log.Errorf("Failed to collect statistics: %v", err)
	}

	status := gin.H{
		"status":      "ok",
		"timestamp":   time.Now(),
		"known_faces": h.store.Size(),
		"statistics":  stats,
		"system":      utils.GetSystemStats(h.processor.Pool()),
		"recognizer": gin.H{
			"enabled": h.cfg.Recognizer.Enabled,
		},
	}

	if h.cfg.Recognizer.Enabled {
		reachable, err := h.recognizer.Ping(c.Request.Context())
		status["recognizer"].(gin.H)["reachable"] = reachable
		if err != nil {
			status["recognizer"].(gin.H)["error"] = err.Error()
		}
	}

	c.JSON(http.StatusOK, status)
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	var id uint
	if _, err := fmt.Sscanf(c.Param(name), "%d", &id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s parameter", name)})
		return 0, false
	}
	return id, true
}
