package api

import (
	"net/http"

	"patron-sync/internal/config"
	"patron-sync/internal/db"
	"patron-sync/internal/logger"
	"patron-sync/internal/model"
	"patron-sync/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	repo db.Repository
	cfg  *config.Config
	log  zerolog.Logger
}

func NewHandler(repo db.Repository, cfg *config.Config) *Handler {
	return &Handler{
		repo: repo,
		cfg:  cfg,
		log:  logger.Get(),
	}
}

var knownOutcomes = map[model.Outcome]bool{
	model.OutcomeUpdated:   true,
	model.OutcomeUnchanged: true,
	model.OutcomeMissing:   true,
	model.OutcomeError:     true,
	model.OutcomeSkipped:   true,
}

func (h *Handler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")

	run, err := h.repo.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, errors.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *Handler) ListOutcomes(c *gin.Context) {
	runID := c.Param("run_id")
	outcome := model.Outcome(c.Query("outcome"))
	if outcome != "" && !knownOutcomes[outcome] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid outcome filter", "outcome": outcome})
		return
	}

	if _, err := h.repo.GetRun(c.Request.Context(), runID); err != nil {
		if errors.Is(err, errors.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	outcomes, err := h.repo.ListOutcomes(c.Request.Context(), runID, outcome)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to list outcomes")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":   runID,
		"count":    len(outcomes),
		"outcomes": outcomes,
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}
