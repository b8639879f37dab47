package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Field sheet columns. Any "dato_N" column is read into Datos.
const (
	sheetOperationID = "operation_id"
	sheetSampleID    = "sample_id"
	sheetLotID       = "lot_id"
	sheetNumber      = "number"
	sheetCrop        = "crop"
	sheetStage       = "stage"
	sheetSampleType  = "sample_type"
	sheetCoordinate  = "coordinate"
	sheetCapturedAt  = "captured_at"
)

// ParseFieldSheet reads a CSV field sheet, one sample per row, into raw sample
// records. The header row names the columns; crop and stage are required.
// Empty dato cells are left out of Datos.
func ParseFieldSheet(r io.Reader) ([]RawSampleRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("field sheet: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("field sheet: read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{sheetCrop, sheetStage} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("field sheet: missing %q column", required)
		}
	}

	var records []RawSampleRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("field sheet: line %d: %w", line, err)
		}
		rec, err := sheetRecord(cols, row)
		if err != nil {
			return nil, fmt.Errorf("field sheet: line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func sheetRecord(cols map[string]int, row []string) (RawSampleRecord, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := RawSampleRecord{
		SampleID:    cell(sheetSampleID),
		OperationID: cell(sheetOperationID),
		LotID:       cell(sheetLotID),
		Crop:        cell(sheetCrop),
		Stage:       StageCode(cell(sheetStage)),
		SampleType:  cell(sheetSampleType),
		Coordinate:  cell(sheetCoordinate),
		CapturedAt:  cell(sheetCapturedAt),
		Datos:       Measurement{},
	}
	if s := cell(sheetNumber); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return RawSampleRecord{}, fmt.Errorf("invalid number %q", s)
		}
		rec.Number = n
	}
	for name, i := range cols {
		if !strings.HasPrefix(name, "dato_") || i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			rec.Datos[name] = v
		}
	}
	return rec, nil
}
