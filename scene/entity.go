package scene

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

var entityIDs atomic.Uint32

// Entity is an object in the scene with a transform and optional
// components. IDs start at 1; zero means "no entity" in the picking target.
type Entity struct {
	ID        uint32
	Name      string
	Transform Transform
	Parent    *Entity
	Children  []*Entity

	active bool
	scene  *Scene

	meshRenderer *MeshRenderer
	light        *Light
	terrain      *TerrainRenderer
	environment  *Environment

	worldDirty bool
	world      mgl32.Mat4
}

func NewEntity(name string) *Entity {
	return &Entity{
		ID:         entityIDs.Add(1),
		Name:       name,
		Transform:  NewTransform(),
		active:     true,
		worldDirty: true,
	}
}

func (e *Entity) Active() bool { return e.active }

func (e *Entity) SetActive(active bool) {
	if e.active == active {
		return
	}
	e.active = active
	e.markRenderList()
}

// Scene returns the scene the entity was added to, or nil.
func (e *Entity) Scene() *Scene { return e.scene }

func (e *Entity) AddChild(child *Entity) {
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	child.Parent = e
	e.Children = append(e.Children, child)
	child.markWorldDirty(true)
}

func (e *Entity) RemoveChild(child *Entity) {
	for i, c := range e.Children {
		if c == child {
			e.Children = append(e.Children[:i], e.Children[i+1:]...)
			child.Parent = nil
			child.markWorldDirty(true)
			return
		}
	}
}

// WorldMatrix returns the cached local-to-world transform.
func (e *Entity) WorldMatrix() mgl32.Mat4 {
	if e.worldDirty {
		local := e.Transform.Matrix()
		if e.Parent != nil {
			e.world = e.Parent.WorldMatrix().Mul4(local)
		} else {
			e.world = local
		}
		e.worldDirty = false
	}
	return e.world
}

// WorldPosition is the translation column of the world matrix.
func (e *Entity) WorldPosition() mgl32.Vec3 {
	return e.WorldMatrix().Col(3).Vec3()
}

// WorldForward is the entity's -Z axis in world space.
func (e *Entity) WorldForward() mgl32.Vec3 {
	return e.WorldMatrix().Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3().Normalize()
}

func (e *Entity) SetPosition(p mgl32.Vec3) {
	e.Transform.Position = p
	e.markWorldDirty(true)
}

func (e *Entity) SetRotation(q mgl32.Quat) {
	e.Transform.Rotation = q
	e.markWorldDirty(false)
}

func (e *Entity) SetScale(s mgl32.Vec3) {
	e.Transform.Scale = s
	e.markWorldDirty(false)
}

func (e *Entity) Translate(delta mgl32.Vec3) {
	e.Transform.Position = e.Transform.Position.Add(delta)
	e.markWorldDirty(true)
}

func (e *Entity) Rotate(axis mgl32.Vec3, angle float32) {
	e.Transform.Rotation = e.Transform.Rotation.Mul(mgl32.QuatRotate(angle, axis)).Normalize()
	e.markWorldDirty(false)
}

// ── components ───────────────────────────────────────────────────────────────

func (e *Entity) MeshRenderer() (*MeshRenderer, bool) { return e.meshRenderer, e.meshRenderer != nil }
func (e *Entity) Light() (*Light, bool)               { return e.light, e.light != nil }
func (e *Entity) Terrain() (*TerrainRenderer, bool)   { return e.terrain, e.terrain != nil }
func (e *Entity) Environment() (*Environment, bool)   { return e.environment, e.environment != nil }

// SetMeshRenderer attaches mr, or detaches with nil.
func (e *Entity) SetMeshRenderer(mr *MeshRenderer) {
	if e.meshRenderer != nil {
		e.meshRenderer.owner = nil
	}
	e.meshRenderer = mr
	if mr != nil {
		mr.owner = e
	}
	e.markRenderList()
}

func (e *Entity) SetLight(l *Light) {
	e.light = l
	e.markRenderList()
}

func (e *Entity) SetTerrain(t *TerrainRenderer) {
	if e.terrain != nil {
		e.terrain.owner = nil
	}
	e.terrain = t
	if t != nil {
		t.owner = e
	}
	e.markRenderList()
}

func (e *Entity) SetEnvironment(env *Environment) {
	if e.environment != nil {
		e.environment.owner = nil
	}
	e.environment = env
	if env != nil {
		env.owner = e
	}
	e.markEnvironment()
}

// markWorldDirty invalidates the cached world matrix of e and its
// descendants. Instance matrices are baked at batching time, so the render
// list is marked only when a moved entity contributes instances. moved
// reports whether the world position of e may have changed; descendants
// always count as moved.
func (e *Entity) markWorldDirty(moved bool) {
	e.worldDirty = true
	if e.batched(moved) {
		e.markRenderList()
	}
	for _, c := range e.Children {
		c.markWorldDirty(true)
	}
}

// batched reports whether a transform change of e alters the instance
// data. Light gizmos only follow the position.
func (e *Entity) batched(moved bool) bool {
	if e.meshRenderer != nil || e.terrain != nil {
		return true
	}
	return moved && e.light != nil && e.scene != nil && e.scene.Settings.RenderLightGizmos
}

func (e *Entity) markRenderList() {
	if e.scene != nil {
		e.scene.renderListChanged = true
	}
}

func (e *Entity) markEnvironment() {
	if e.scene != nil {
		e.scene.environmentChanged = true
	}
}

// Traverse visits e and its descendants depth first.
func (e *Entity) Traverse(fn func(*Entity)) {
	fn(e)
	for _, c := range e.Children {
		c.Traverse(fn)
	}
}
