package main

import (
	"math"
	"testing"

	"deferred-renderer/scene"
)

func TestSampleSkyHitsKeys(t *testing.T) {
	for _, k := range skyKeys {
		got := sampleSky(k.t)
		if math.Abs(float64(got.sunIntensity-k.sunIntensity)) > 1e-5 {
			t.Errorf("t=%.2f intensity %v, want %v", k.t, got.sunIntensity, k.sunIntensity)
		}
		if got.background != k.background {
			t.Errorf("t=%.2f background %v, want %v", k.t, got.background, k.background)
		}
	}
}

func TestSampleSkyWraps(t *testing.T) {
	last, first := skyKeys[len(skyKeys)-1], skyKeys[0]
	mid := (last.t + 1) / 2
	got := sampleSky(mid)
	lo, hi := min(last.ambient, first.ambient), max(last.ambient, first.ambient)
	if got.ambient < lo || got.ambient > hi {
		t.Errorf("ambient %v outside [%v, %v] across midnight wrap", got.ambient, lo, hi)
	}
}

func TestDayNightSunPointsDown(t *testing.T) {
	s := scene.NewScene()
	sun := scene.NewEntity("sun")
	sun.SetLight(scene.NewDirectionalLight(skyKeys[0].sunColor, 1))
	s.Add(sun)
	dn := NewDayNight()
	for _, tm := range []float32{0, 0.2, 0.5, 0.9} {
		dn.Time = tm
		dn.Apply(s, sun)
		if y := sun.WorldForward().Y(); y > 0 {
			t.Errorf("t=%.1f sun forward y = %v, want <= 0", tm, y)
		}
	}
	if s.Settings.BackgroundColor != sampleSky(0.9).background {
		t.Error("background not taken from the sky")
	}
}

func TestDayNightClock(t *testing.T) {
	dn := &DayNight{}
	if got := dn.Clock(); got != "12:00" {
		t.Errorf("noon clock %q", got)
	}
	dn.Time = 0.5
	if got := dn.Clock(); got != "00:00" {
		t.Errorf("midnight clock %q", got)
	}
	dn.Period, dn.Active = 10, true
	dn.Update(15)
	if dn.Time < 0 || dn.Time >= 1 {
		t.Errorf("time %v not wrapped", dn.Time)
	}
}
