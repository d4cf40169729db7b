package handlers

import (
	"net/http"

	"github.com/vkadlec/face-attendance/internal/config"
	"github.com/vkadlec/face-attendance/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the non-sensitive configuration
type ConfigResponse struct {
	RecognizerModel   string  `json:"recognizer_model"`
	DistanceThreshold float64 `json:"distance_threshold"`
	MinDetScore       float64 `json:"min_det_score"`
	Cooldown          string  `json:"cooldown"`
	TickInterval      string  `json:"tick_interval"`
	OverlapMode       string  `json:"overlap_mode"`
	DatabaseAvailable bool    `json:"database_available"`
	SISConfigured     bool    `json:"sis_configured"`
}

// Get returns the effective configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	thresholds := h.config.GetModelThresholds(h.config.Recognizer.Model)

	respondJSON(w, http.StatusOK, ConfigResponse{
		RecognizerModel:   h.config.Recognizer.Model,
		DistanceThreshold: thresholds.Distance,
		MinDetScore:       thresholds.MinDetScore,
		Cooldown:          h.config.Attendance.Cooldown.String(),
		TickInterval:      h.config.Attendance.TickInterval.String(),
		OverlapMode:       h.config.Attendance.OverlapMode,
		DatabaseAvailable: database.IsInitialized(),
		SISConfigured:     h.config.SIS.DatabaseURL != "",
	})
}
