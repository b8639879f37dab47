package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawSampleRecord is the JSON document the capture app publishes for one
// field sample. Datos holds the form fields exactly as typed.
type RawSampleRecord struct {
	SampleID    string      `json:"sample_id"`
	OperationID string      `json:"operation_id"`
	LotID       string      `json:"lot_id,omitempty"`
	Number      int         `json:"number,omitempty"`
	Crop        string      `json:"crop"`
	Stage       StageCode   `json:"stage"`
	SampleType  string      `json:"sample_type,omitempty"`
	Datos       Measurement `json:"datos"`
	Coordinate  string      `json:"coordinate,omitempty"`
	CapturedAt  string      `json:"captured_at,omitempty"`
}

// StageCode is a stage picker value. It decodes from a JSON string or number.
type StageCode string

// UnmarshalJSON implements json.Unmarshaler.
func (c *StageCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = StageCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode stage code: %w", err)
	}
	*c = StageCode(n.String())
	return nil
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FieldSample is a parsed field sample and, once assessed, its damage estimate.
type FieldSample struct {
	ID          string      `json:"id"`
	SampleID    string      `json:"sample_id,omitempty"`
	OperationID string      `json:"operation_id,omitempty"`
	LotID       string      `json:"lot_id,omitempty"`
	Number      int         `json:"number,omitempty"`
	Name        string      `json:"name,omitempty"`
	Crop        Crop        `json:"crop"`
	StageCode   string      `json:"stage_code"`
	SampleType  string      `json:"sample_type,omitempty"`
	Datos       Measurement `json:"datos"`
	CapturedAt  time.Time   `json:"captured_at"`

	// Assessment fields.
	Stage         Stage    `json:"stage"`
	StageFallback bool     `json:"stage_fallback,omitempty"`
	Damage        Result   `json:"damage"`
	DamageDisplay string   `json:"damage_display"`
	Factors       []Factor `json:"factors,omitempty"`
	Diagnostic    string   `json:"diagnostic,omitempty"`

	// Location fields.
	Coordinate       string  `json:"coordinate,omitempty"`
	Geo              *Geo    `json:"geo,omitempty"`
	CoordinateDMS    string  `json:"coordinate_dms,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	PlaceName        string  `json:"place_name,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // "reverse", "original", "failed"

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Open reports whether the sample is not yet assigned to a lot.
func (s FieldSample) Open() bool {
	return s.LotID == ""
}

// Outcome classifies how the sample's damage figure was reached, for metrics.
func (s FieldSample) Outcome() string {
	switch {
	case strings.HasPrefix(s.Diagnostic, "internal error"):
		return "error"
	case s.Diagnostic != "":
		return "unroutable"
	case s.StageFallback:
		return "fallback"
	case !s.Damage.Applicable():
		return "not_applicable"
	default:
		return "estimated"
	}
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

func sampleName(number int) string {
	if number <= 0 {
		return ""
	}
	return "Muestra " + strconv.Itoa(number)
}
