package telemetry

import (
	"errors"
	"testing"
	"time"
)

var fixedNow = time.Unix(1_700_000_000, 0)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Reading
	}{
		{
			name:    "complete payload",
			payload: `{"temp_room":21.5,"hum_room":55,"temp_out":12.25,"lux":300,"ldr_raw":612,"timestamp":1699999990}`,
			want:    Reading{TempRoom: 21.5, HumRoom: 55, TempOut: 12.25, Lux: 300, LDRRaw: 612, Timestamp: 1699999990},
		},
		{
			name:    "bad and missing fields become zero",
			payload: `{"temp_room": 21.5, "hum_room": "bad", "lux": 300}`,
			want:    Reading{TempRoom: 21.5, Lux: 300, Timestamp: fixedNow.Unix()},
		},
		{
			name:    "empty object",
			payload: `{}`,
			want:    Reading{Timestamp: fixedNow.Unix()},
		},
		{
			name:    "numeric strings are coerced",
			payload: `{"temp_room":" 19.75 ","ldr_raw":"1024","timestamp":"1699999000"}`,
			want:    Reading{TempRoom: 19.75, LDRRaw: 1024, Timestamp: 1699999000},
		},
		{
			name:    "null, arrays and objects become zero",
			payload: `{"temp_room":null,"hum_room":[1],"temp_out":{"v":3},"lux":"","ldr_raw":true}`,
			want:    Reading{LDRRaw: 1, Timestamp: fixedNow.Unix()},
		},
		{
			name:    "fractional timestamp is truncated",
			payload: `{"timestamp":1699999999.9}`,
			want:    Reading{Timestamp: 1699999999},
		},
		{
			name:    "zero timestamp falls back to now",
			payload: `{"timestamp":0,"lux":0}`,
			want:    Reading{Timestamp: fixedNow.Unix()},
		},
		{
			name:    "timestamp at int64 limit falls back to now",
			payload: `{"timestamp":9223372036854775807}`,
			want:    Reading{Timestamp: fixedNow.Unix()},
		},
		{
			name:    "timestamp beyond int64 falls back to now",
			payload: `{"timestamp":1e19}`,
			want:    Reading{Timestamp: fixedNow.Unix()},
		},
		{
			name:    "non-finite strings become zero",
			payload: `{"temp_room":"NaN","temp_out":"Inf","hum_room":"-Infinity"}`,
			want:    Reading{Timestamp: fixedNow.Unix()},
		},
		{
			name:    "out of range number becomes zero",
			payload: `{"lux":1e400}`,
			want:    Reading{Timestamp: fixedNow.Unix()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.payload), fixedNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	payloads := []string{
		``,
		`   `,
		`not json`,
		`{"temp_room": 21.5`,
		`[1,2,3]`,
		`"string"`,
		`42`,
		`null`,
	}

	for _, p := range payloads {
		_, err := Normalize([]byte(p), fixedNow)
		if !errors.Is(err, ErrParse) {
			t.Errorf("payload %q: expected ErrParse, got %v", p, err)
		}
	}
}

func TestParse_ReportsSubstitutedFields(t *testing.T) {
	_, missing, err := Parse([]byte(`{"temp_room": 21.5, "hum_room": "bad", "lux": 300}`), fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{FieldHumRoom, FieldTempOut, FieldLDRRaw, FieldTimestamp}
	if len(missing) != len(want) {
		t.Fatalf("expected %v, got %v", want, missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("expected %v, got %v", want, missing)
		}
	}
}

func TestReading_Time(t *testing.T) {
	r := Reading{Timestamp: 1_700_000_000}
	if !r.Time().Equal(fixedNow) {
		t.Errorf("expected %v, got %v", fixedNow, r.Time())
	}
}
