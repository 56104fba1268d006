package datastore

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// Format of a byte-oriented source
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Field names as they appear in the source data
const (
	FieldManufacturer = "Manufacturer"
	FieldModelYear    = "Model Year"
	FieldMPG          = "MPG"
	FieldAcceleration = "Acceleration"
	FieldModel        = "Model"
	FieldCylinders    = "Cylinders"
	FieldHorsepower   = "Horsepower"
	FieldWeight       = "Weight"
	FieldOrigin       = "Origin"
)

var requiredFields = []string{FieldManufacturer, FieldModelYear, FieldMPG, FieldAcceleration}

// FormatFromName guesses the format from a file name, URL path or content type
func FormatFromName(name string) Format {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".csv") || strings.Contains(lower, "text/csv") {
		return FormatCSV
	}
	return FormatJSON
}

// Decode parses raw bytes into records. Any bad record fails the whole decode.
func Decode(data []byte, format Format) ([]models.CarRecord, error) {
	switch format {
	case FormatCSV:
		return decodeCSV(data)
	default:
		return decodeJSON(data)
	}
}

func decodeJSON(data []byte) ([]models.CarRecord, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("expected a JSON array of records: %v", err)
	}

	records := make([]models.CarRecord, 0, len(raw))
	for i, obj := range raw {
		fields := make(map[string]string, len(obj))
		nulls := make(map[string]bool)
		for k, v := range obj {
			trimmed := bytes.TrimSpace(v)
			if bytes.Equal(trimmed, []byte("null")) {
				nulls[k] = true
				fields[k] = ""
				continue
			}
			var s string
			if len(trimmed) > 0 && trimmed[0] == '"' {
				if err := json.Unmarshal(trimmed, &s); err != nil {
					return nil, malformed("record %d: field %q: %v", i, k, err)
				}
			} else {
				s = string(trimmed)
			}
			fields[k] = s
		}

		rec, err := buildRecord(i, fields, nulls)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeCSV(data []byte) ([]models.CarRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, malformed("failed to read CSV headers: %v", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var records []models.CarRecord
	for i := 0; ; i++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed("CSV row %d: %v", i+1, err)
		}

		fields := make(map[string]string, len(headers))
		nulls := make(map[string]bool)
		for j, h := range headers {
			if j >= len(row) {
				break
			}
			v := strings.TrimSpace(row[j])
			fields[h] = v
			if v == "" || strings.EqualFold(v, "NA") {
				nulls[h] = true
			}
		}

		rec, err := buildRecord(i, fields, nulls)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// buildRecord validates required fields. A null measure is kept as NaN and
// skipped by aggregation; a missing field or null key is malformed.
func buildRecord(i int, fields map[string]string, nulls map[string]bool) (models.CarRecord, error) {
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			return models.CarRecord{}, malformed("record %d: missing required field %q", i, f)
		}
	}

	var rec models.CarRecord

	rec.Manufacturer = fields[FieldManufacturer]
	if nulls[FieldManufacturer] || rec.Manufacturer == "" {
		return rec, malformed("record %d: empty %q", i, FieldManufacturer)
	}

	if nulls[FieldModelYear] {
		return rec, malformed("record %d: empty %q", i, FieldModelYear)
	}
	year, err := parseInt(fields[FieldModelYear])
	if err != nil {
		return rec, malformed("record %d: %q: %v", i, FieldModelYear, err)
	}
	rec.ModelYear = year

	if rec.MPG, err = parseMeasure(fields[FieldMPG], nulls[FieldMPG]); err != nil {
		return rec, malformed("record %d: %q: %v", i, FieldMPG, err)
	}
	if rec.Acceleration, err = parseMeasure(fields[FieldAcceleration], nulls[FieldAcceleration]); err != nil {
		return rec, malformed("record %d: %q: %v", i, FieldAcceleration, err)
	}

	// Optional fields are best effort
	rec.Model = fields[FieldModel]
	rec.Origin = fields[FieldOrigin]
	if v, ok := fields[FieldCylinders]; ok && !nulls[FieldCylinders] {
		rec.Cylinders, _ = parseInt(v)
	}
	if v, ok := fields[FieldHorsepower]; ok && !nulls[FieldHorsepower] {
		rec.Horsepower, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := fields[FieldWeight]; ok && !nulls[FieldWeight] {
		rec.Weight, _ = strconv.ParseFloat(v, 64)
	}

	return rec, nil
}

func parseInt(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, strconv.ErrSyntax
	}
	return int(f), nil
}

func parseMeasure(s string, null bool) (float64, error) {
	if null {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
