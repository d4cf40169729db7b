package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vkadlec/face-attendance/internal/config"
)

func TestConfigHandler_Get(t *testing.T) {
	cfg := testConfig()
	cfg.Thresholds = config.ThresholdsConfig{
		Models: map[string]config.ModelThresholds{
			"buffalo_l": {Distance: 0.45, MinDetScore: 0.6},
		},
	}

	handler := NewConfigHandler(cfg)

	req := httptest.NewRequest("GET", "/api/v1/config", nil)
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp ConfigResponse
	parseJSONResponse(t, recorder, &resp)

	if resp.RecognizerModel != "buffalo_l" {
		t.Errorf("expected model 'buffalo_l', got '%s'", resp.RecognizerModel)
	}
	if resp.DistanceThreshold != 0.45 {
		t.Errorf("expected distance threshold 0.45, got %f", resp.DistanceThreshold)
	}
	if resp.Cooldown != "1m0s" {
		t.Errorf("expected cooldown '1m0s', got '%s'", resp.Cooldown)
	}
	if resp.OverlapMode != "skip" {
		t.Errorf("expected overlap mode 'skip', got '%s'", resp.OverlapMode)
	}
}

func TestConfigHandler_GetFallbackThresholds(t *testing.T) {
	cfg := testConfig()
	cfg.Recognizer.Model = "unknown_model"

	handler := NewConfigHandler(cfg)

	req := httptest.NewRequest("GET", "/api/v1/config", nil)
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp ConfigResponse
	parseJSONResponse(t, recorder, &resp)

	if resp.DistanceThreshold != 0.5 {
		t.Errorf("expected fallback distance threshold 0.5, got %f", resp.DistanceThreshold)
	}
}
