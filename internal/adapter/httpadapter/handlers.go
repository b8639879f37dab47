package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/couchcryptid/crop-damage-etl/internal/domain"
)

const maxBodyBytes = 1 << 20

type estimateRequest struct {
	Crop  string             `json:"crop"`
	Stage domain.StageCode   `json:"stage"`
	Datos domain.Measurement `json:"datos"`
}

type estimateResponse struct {
	domain.Assessment
	DamageDisplay string `json:"damage_display"`
}

type recomputeRequest struct {
	Crop    string               `json:"crop"`
	Stage   domain.StageCode     `json:"stage"`
	Samples []domain.FieldSample `json:"samples"`
}

type recomputeResponse struct {
	Recomputed int                  `json:"recomputed"`
	Samples    []domain.FieldSample `json:"samples"`
}

type stagesResponse struct {
	Crop   domain.Crop    `json:"crop"`
	Stages []domain.Stage `json:"stages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	crop, err := requireCrop(req.Crop)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	a := s.engine.Assess(req.Datos, string(req.Stage), string(crop))
	s.logger.Debug("estimate served",
		"crop", a.Crop,
		"stage", a.Stage.Label,
		"damage", a.Damage.String(),
	)
	writeJSON(w, http.StatusOK, estimateResponse{Assessment: a, DamageDisplay: a.Damage.String()})
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	crop, err := requireCrop(req.Crop)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	samples, n := s.engine.Recompute(req.Samples, string(req.Stage), string(crop))
	if samples == nil {
		samples = []domain.FieldSample{}
	}
	writeJSON(w, http.StatusOK, recomputeResponse{Recomputed: n, Samples: samples})
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	crop, err := requireCrop(r.URL.Query().Get("crop"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stagesResponse{Crop: crop, Stages: domain.Stages(crop)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// requireCrop rejects unknown crops, unlike Engine.Estimate which treats them as soybean.
func requireCrop(name string) (domain.Crop, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("crop is required")
	}
	crop, ok := domain.LookupCrop(name)
	if !ok {
		return "", fmt.Errorf("unknown crop %q", name)
	}
	return crop, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
