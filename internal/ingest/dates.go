package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tradedoc/internal/models"
)

var errInvalidDate = errors.New("invalid date")

// serialEpoch is day zero of spreadsheet serial dates (the 1900 leap-year bug
// is absorbed by starting on 1899-12-30 instead of 1900-01-01).
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31.
const maxSerial = 2958465

var numericPattern = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

var dateLayouts = []string{
	"2/1/2006", // dd/MM/yyyy, single digits tolerated
	"2006-01-02",
}

// DecodeDate turns a spreadsheet date cell into an anchored calendar day. It
// accepts a native time, a serial day count, or a dd/MM/yyyy string.
func DecodeDate(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, errInvalidDate
		}
		return models.Day(val), nil
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, errInvalidDate
		}
		return models.Day(*val), nil
	case float64:
		return fromSerial(val)
	case float32:
		return fromSerial(float64(val))
	case int:
		return fromSerial(float64(val))
	case int64:
		return fromSerial(float64(val))
	case int32:
		return fromSerial(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, val.String())
		}
		return fromSerial(f)
	case string:
		return fromString(val)
	}
	return time.Time{}, fmt.Errorf("%w: unsupported value %v", errInvalidDate, v)
}

func fromSerial(serial float64) (time.Time, error) {
	if math.IsNaN(serial) || serial < 1 || serial > maxSerial {
		return time.Time{}, fmt.Errorf("%w: serial %v out of range", errInvalidDate, serial)
	}
	// the fraction is the time of day and is dropped
	days := int(math.Floor(serial))
	return models.Day(serialEpoch.AddDate(0, 0, days)), nil
}

func fromString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errInvalidDate
	}
	if numericPattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, s)
		}
		return fromSerial(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, s)
}
