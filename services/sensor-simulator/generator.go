package main

import (
	"math"
	"math/rand/v2"
	"time"

	"weather-station/internal/telemetry"
)

// Generator drží stav náhodné procházky, každé měření navazuje na předchozí.
type Generator struct {
	rnd *rand.Rand

	tempRoom float64
	humRoom  float64
	tempOut  float64
	lux      float64
}

// NewGenerator: seed kvůli opakovatelným testům.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		rnd:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		tempRoom: 25,
		humRoom:  60,
		tempOut:  28,
		lux:      500,
	}
}

// Next vrátí další měření. Den (6-18 h) se bere z lokálního času now.
func (g *Generator) Next(now time.Time) telemetry.Reading {
	g.tempRoom = clamp(g.tempRoom+g.uniform(-0.5, 0.5), 22, 28)
	g.humRoom = clamp(g.humRoom+g.uniform(-2, 2), 40, 80)
	g.tempOut = clamp(g.tempOut+g.uniform(-1, 1), 25, 35)

	if h := now.Hour(); h >= 6 && h <= 18 {
		g.lux = clamp(g.lux+g.uniform(-50, 100), 100, 2000)
	} else {
		g.lux = clamp(g.lux-g.uniform(0, 20), 0, 50)
	}

	// LDR zhruba kopíruje osvětlení.
	ldr := clamp(math.Trunc(g.lux*2+g.uniform(-100, 100)), 0, 4000)

	return telemetry.Reading{
		TempRoom:  round1(g.tempRoom),
		HumRoom:   round1(g.humRoom),
		TempOut:   round1(g.tempOut),
		Lux:       round1(g.lux),
		LDRRaw:    ldr,
		Timestamp: now.Unix(),
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
