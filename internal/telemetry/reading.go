// Package telemetry obsahuje datový model stanice a normalizaci příchozích zpráv.
package telemetry

import "time"

// Reading je jedno měření meteostanice tak, jak ho posílá senzor do MQTT.
// Všechny hodnoty jsou vždy konečná čísla (nikdy NaN/Inf), to zajišťuje Normalize.
type Reading struct {
	TempRoom float64 `json:"temp_room"` // Teplota v místnosti (°C)
	HumRoom  float64 `json:"hum_room"`  // Relativní vlhkost v místnosti (%)
	TempOut  float64 `json:"temp_out"`  // Venkovní teplota (°C)
	Lux      float64 `json:"lux"`       // Osvětlení (lx)
	LDRRaw   float64 `json:"ldr_raw"`   // Surová hodnota fotorezistoru z ADC

	// Timestamp: čas měření v unix sekundách, jak ho nahlásil senzor.
	// Může se lišit od CreatedAt (hodiny senzoru nemusí být synchronizované).
	Timestamp int64 `json:"timestamp"`
}

// Time vrací Timestamp jako time.Time v UTC.
func (r Reading) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// StoredReading je Reading uložený v úložišti.
type StoredReading struct {
	ID int64 `json:"id"`
	Reading

	// CreatedAt: čas přijetí do úložiště (wall-clock serveru).
	CreatedAt time.Time `json:"created_at"`
}
