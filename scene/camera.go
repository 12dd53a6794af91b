package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const maxPitch = 89 * math.Pi / 180

// Camera is a yaw/pitch perspective camera. Yaw 0 and pitch 0 look down -Z;
// positive pitch looks up.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	FOV      float32 // vertical, radians
	Near     float32
	Far      float32
	Width    int
	Height   int
}

func NewCamera(fov float32, width, height int, near, far float32) *Camera {
	return &Camera{FOV: fov, Near: near, Far: far, Width: width, Height: height}
}

// SetViewport updates the viewport size used for the aspect ratio.
func (c *Camera) SetViewport(width, height int) {
	c.Width, c.Height = width, height
}

func (c *Camera) Viewport() (int, int)        { return c.Width, c.Height }
func (c *Camera) Planes() (near, far float32) { return c.Near, c.Far }

func (c *Camera) Aspect() float32 {
	if c.Height <= 0 {
		return 1
	}
	return float32(c.Width) / float32(c.Height)
}

func (c *Camera) Forward() mgl32.Vec3 {
	sy, cy := sincos(c.Yaw)
	sp, cp := sincos(c.Pitch)
	return mgl32.Vec3{cp * sy, sp, -cp * cy}
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(mgl32.Vec3{0, 1, 0}).Normalize()
}

func (c *Camera) Up() mgl32.Vec3 {
	return c.Right().Cross(c.Forward())
}

// LookAt points the camera at target.
func (c *Camera) LookAt(target mgl32.Vec3) {
	d := target.Sub(c.Position)
	if d.Len() == 0 {
		return
	}
	d = d.Normalize()
	c.Pitch = clampPitch(float32(math.Asin(float64(d.Y()))))
	c.Yaw = float32(math.Atan2(float64(d.X()), float64(-d.Z())))
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(c.FOV, c.Aspect(), c.Near, c.Far)
}

// WorldMatrix is the camera-to-world transform.
func (c *Camera) WorldMatrix() mgl32.Mat4 { return c.ViewMatrix().Inv() }

func (c *Camera) ViewProjectionMatrix() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

// NearPlaneExtents returns the half extents of the near plane in view space.
func (c *Camera) NearPlaneExtents() (left, right, bottom, top float32) {
	top = c.Near * float32(math.Tan(float64(c.FOV)/2))
	right = top * c.Aspect()
	return -right, right, -top, top
}

// Mirrored returns a copy reflected in the horizontal plane y = planeY. Only
// the height and pitch change.
func (c *Camera) Mirrored(planeY float32) *Camera {
	m := *c
	m.Position[1] = 2*planeY - c.Position.Y()
	m.Pitch = -c.Pitch
	return &m
}

func clampPitch(p float32) float32 {
	if p > maxPitch {
		return maxPitch
	}
	if p < -maxPitch {
		return -maxPitch
	}
	return p
}

func sincos(a float32) (float32, float32) {
	s, c := math.Sincos(float64(a))
	return float32(s), float32(c)
}

// OrbitCamera circles a target at a distance.
type OrbitCamera struct {
	Camera
	Target   mgl32.Vec3
	Distance float32
	// Azimuth and Elevation place the eye around Target.
	Azimuth   float32
	Elevation float32
}

func NewOrbitCamera(target mgl32.Vec3, distance, fov float32, width, height int) *OrbitCamera {
	c := &OrbitCamera{
		Camera:    *NewCamera(fov, width, height, 0.1, 1000),
		Target:    target,
		Distance:  distance,
		Elevation: 0.3,
	}
	c.UpdatePosition()
	return c
}

func (c *OrbitCamera) UpdatePosition() {
	if c.Elevation > 1.5 {
		c.Elevation = 1.5
	}
	if c.Elevation < -1.5 {
		c.Elevation = -1.5
	}
	se, ce := sincos(c.Elevation)
	sa, ca := sincos(c.Azimuth)
	offset := mgl32.Vec3{c.Distance * ce * sa, c.Distance * se, c.Distance * ce * ca}
	c.Position = c.Target.Add(offset)
	c.LookAt(c.Target)
}

func (c *OrbitCamera) Orbit(dAzimuth, dElevation float32) {
	c.Azimuth += dAzimuth
	c.Elevation += dElevation
	c.UpdatePosition()
}

func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance += delta
	if c.Distance < 0.1 {
		c.Distance = 0.1
	}
	c.UpdatePosition()
}

// Pan moves the target in the camera's screen plane.
func (c *OrbitCamera) Pan(dx, dy float32) {
	c.Target = c.Target.Add(c.Right().Mul(dx)).Add(c.Up().Mul(dy))
	c.UpdatePosition()
}
