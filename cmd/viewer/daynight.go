package main

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/core"
	"deferred-renderer/scene"
)

// skyKey is the sky and sun state at one time of day.
type skyKey struct {
	t            float32 // 0..1, wraps
	background   core.Color
	sunColor     core.Color
	sunIntensity float32
	ambient      float32
}

// 0 is noon, 0.25 sunset, 0.5 midnight, 0.75 sunrise.
var skyKeys = []skyKey{
	{t: 0.00, background: core.Color{R: 0.58, G: 0.75, B: 0.95, A: 1}, sunColor: core.Color{R: 1.00, G: 0.98, B: 0.92, A: 1}, sunIntensity: 3.0, ambient: 1.0},
	{t: 0.22, background: core.Color{R: 0.90, G: 0.52, B: 0.18, A: 1}, sunColor: core.Color{R: 1.00, G: 0.65, B: 0.25, A: 1}, sunIntensity: 2.0, ambient: 0.7},
	{t: 0.30, background: core.Color{R: 0.50, G: 0.22, B: 0.28, A: 1}, sunColor: core.Color{R: 0.70, G: 0.40, B: 0.55, A: 1}, sunIntensity: 0.6, ambient: 0.4},
	{t: 0.50, background: core.Color{R: 0.04, G: 0.04, B: 0.08, A: 1}, sunColor: core.Color{R: 0.40, G: 0.45, B: 0.65, A: 1}, sunIntensity: 0.2, ambient: 0.15},
	{t: 0.70, background: core.Color{R: 0.40, G: 0.18, B: 0.24, A: 1}, sunColor: core.Color{R: 0.75, G: 0.42, B: 0.60, A: 1}, sunIntensity: 0.4, ambient: 0.3},
	{t: 0.78, background: core.Color{R: 0.88, G: 0.45, B: 0.22, A: 1}, sunColor: core.Color{R: 1.00, G: 0.60, B: 0.28, A: 1}, sunIntensity: 1.6, ambient: 0.6},
}

// DayNight animates the sun and the background color.
type DayNight struct {
	Time   float32 // 0..1
	Period float32 // seconds per full cycle
	Active bool
}

func NewDayNight() *DayNight {
	return &DayNight{Period: 120, Active: true}
}

func (dn *DayNight) Update(dt float32) {
	if !dn.Active || dn.Period <= 0 {
		return
	}
	dn.Time += dt / dn.Period
	dn.Time -= float32(math.Floor(float64(dn.Time)))
}

// Clock formats Time as a 24 hour clock where 0 is noon.
func (dn *DayNight) Clock() string {
	minutes := int((dn.Time*24+12)*60) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func lerpColor(a, b core.Color, t float32) core.Color {
	return core.Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: 1,
	}
}

func sampleSky(t float32) skyKey {
	n := len(skyKeys)
	i := n - 1
	for k := 0; k < n; k++ {
		if skyKeys[k].t > t {
			break
		}
		i = k
	}
	a, b := skyKeys[i], skyKeys[(i+1)%n]
	span := b.t - a.t
	if span <= 0 {
		span += 1
	}
	local := t - a.t
	if local < 0 {
		local += 1
	}
	f := local / span
	return skyKey{
		t:            t,
		background:   lerpColor(a.background, b.background, f),
		sunColor:     lerpColor(a.sunColor, b.sunColor, f),
		sunIntensity: a.sunIntensity + (b.sunIntensity-a.sunIntensity)*f,
		ambient:      a.ambient + (b.ambient-a.ambient)*f,
	}
}

// Apply points the sun entity along the current sun direction and updates
// its light and the scene's background and ambient settings.
func (dn *DayNight) Apply(s *scene.Scene, sun *scene.Entity) {
	k := sampleSky(dn.Time)
	s.Settings.BackgroundColor = k.background
	s.Settings.AmbientIntensity = k.ambient

	if sun == nil {
		return
	}
	if l, ok := sun.Light(); ok {
		l.Color = k.sunColor
		l.Intensity = k.sunIntensity
	}
	angle := float64(dn.Time) * 2 * math.Pi
	dir := mgl32.Vec3{float32(math.Sin(angle)), -float32(math.Cos(angle)), 0.35}.Normalize()
	// Below the horizon the sun turns into a moon shining down.
	if dir.Y() > 0 {
		dir[1] = -dir[1]
	}
	sun.SetRotation(mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, dir))
}
