package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrParse značí payload, který nejde přečíst jako JSON objekt.
// Takovou zprávu zahazujeme, opakování ji neopraví.
var ErrParse = errors.New("telemetry: malformed payload")

// Názvy polí ve zprávě ze senzoru.
const (
	FieldTempRoom  = "temp_room"
	FieldHumRoom   = "hum_room"
	FieldTempOut   = "temp_out"
	FieldLux       = "lux"
	FieldLDRRaw    = "ldr_raw"
	FieldTimestamp = "timestamp"
)

// Normalize převede surový payload na Reading.
// Chybějící nebo nečíselné hodnoty nahradí nulou, chybějící timestamp časem now.
// Chybu vrací pouze pro payload, který není JSON objekt.
func Normalize(payload []byte, now time.Time) (Reading, error) {
	r, _, err := Parse(payload, now)
	return r, err
}

// Parse dělá totéž co Normalize a navíc vrací seznam polí, za která byla
// dosazena výchozí hodnota.
func Parse(payload []byte, now time.Time) (Reading, []string, error) {
	raw, err := decodeObject(payload)
	if err != nil {
		return Reading{}, nil, err
	}

	var missing []string
	num := func(field string) float64 {
		v, ok := coerce(raw[field])
		if !ok {
			missing = append(missing, field)
		}
		return v
	}

	r := Reading{
		TempRoom: num(FieldTempRoom),
		HumRoom:  num(FieldHumRoom),
		TempOut:  num(FieldTempOut),
		Lux:      num(FieldLux),
		LDRRaw:   num(FieldLDRRaw),
	}

	// Nulový timestamp bereme stejně jako chybějící. float64(MaxInt64) je 2^63,
	// to už se do int64 nevejde.
	ts, ok := coerce(raw[FieldTimestamp])
	if !ok || ts == 0 || ts >= math.MaxInt64 || ts < math.MinInt64 {
		missing = append(missing, FieldTimestamp)
		r.Timestamp = now.Unix()
	} else {
		r.Timestamp = int64(ts)
	}

	return r, missing, nil
}

func decodeObject(payload []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrParse)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return raw, nil
}

// coerce převede jednu JSON hodnotu na číslo.
// Druhá návratová hodnota je false, pokud hodnota chyběla nebo nešla převést
// (výsledek je pak 0).
func coerce(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}

	switch val := v.(type) {
	case float64:
		return finite(val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		// null, pole, objekty
		return 0, false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
