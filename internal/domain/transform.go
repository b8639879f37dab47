package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// capturedAtLayouts are the capture timestamp formats accepted, most precise first.
var capturedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2/1/2006", // locale date string of the capture app (d/m/yyyy)
}

// ParseRawSample deserializes a RawEvent's value into a FieldSample.
func ParseRawSample(raw RawEvent) (FieldSample, error) {
	var rec RawSampleRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return FieldSample{}, fmt.Errorf("parse raw sample: %w", err)
	}

	crop := ParseCrop(rec.Crop)
	sample := FieldSample{
		ID:          generateID(crop, rec.OperationID, rec.SampleID, rec.Number, rec.Coordinate),
		SampleID:    rec.SampleID,
		OperationID: rec.OperationID,
		LotID:       strings.TrimSpace(rec.LotID),
		Number:      rec.Number,
		Name:        sampleName(rec.Number),
		Crop:        crop,
		StageCode:   strings.TrimSpace(string(rec.Stage)),
		SampleType:  rec.SampleType,
		Datos:       rec.Datos,
		CapturedAt:  parseCapturedAt(raw.Timestamp, rec.CapturedAt),
		Coordinate:  strings.TrimSpace(rec.Coordinate),

		RawPayload: raw.Value,
	}
	if sample.Datos == nil {
		sample.Datos = Measurement{}
	}
	if geo, ok := ParseCoordinate(sample.Coordinate); ok {
		sample.Geo = &geo
		sample.CoordinateDMS = geo.DMS()
	}
	return sample, nil
}

// parseCapturedAt reads the capture timestamp, falling back to the message
// timestamp when it is missing or unreadable.
func parseCapturedAt(fallback time.Time, value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback.UTC()
	}
	for _, layout := range capturedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}

// generateID produces a deterministic ID from the sample's identity fields.
// The stage code is left out so a re-assessed sample keeps its ID.
func generateID(crop Crop, operationID, sampleID string, number int, coordinate string) string {
	input := fmt.Sprintf("%s|%s|%s|%d|%s", crop, operationID, sampleID, number, coordinate)
	hash := sha256.Sum256([]byte(input))
	return string(crop) + "-" + hex.EncodeToString(hash[:8])
}

// AssessSample runs the damage engine over a parsed sample and stamps it with
// the processing time. The sample's group becomes the routed stage's group.
func AssessSample(engine *Engine, sample FieldSample) FieldSample {
	a := engine.Assess(sample.Datos, sample.StageCode, string(sample.Crop))
	sample.Crop = a.Crop
	sample.Stage = a.Stage
	sample.StageFallback = a.Fallback
	sample.Damage = a.Damage
	sample.DamageDisplay = a.Damage.String()
	sample.Factors = a.Factors
	sample.Diagnostic = a.Diagnostic
	if a.Stage.Group != "" {
		sample.SampleType = string(a.Stage.Group)
	}
	sample.ProcessedAt = clock.Now()
	return sample
}

// SerializeFieldSample marshals an assessed sample into an OutputEvent keyed
// by sample ID.
func SerializeFieldSample(sample FieldSample) (OutputEvent, error) {
	value, err := json.Marshal(sample)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize field sample: %w", err)
	}

	return OutputEvent{
		Key:   []byte(sample.ID),
		Value: value,
		Headers: map[string]string{
			"crop":         string(sample.Crop),
			"stage":        sample.Stage.Label,
			"damage":       sample.DamageDisplay,
			"processed_at": sample.ProcessedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}
