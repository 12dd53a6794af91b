package editor

import (
	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/scene"
)

// Selection is the ordered set of selected entities. Active is the most
// recently selected one.
type Selection struct {
	entities []*scene.Entity
	Active   *scene.Entity
}

func NewSelection() *Selection {
	return &Selection{}
}

func (s *Selection) Count() int { return len(s.entities) }

func (s *Selection) At(i int) *scene.Entity { return s.entities[i] }

func (s *Selection) Clear() {
	s.entities = s.entities[:0]
	s.Active = nil
}

// SelectSingle replaces the selection with e.
func (s *Selection) SelectSingle(e *scene.Entity) {
	s.entities = append(s.entities[:0], e)
	s.Active = e
}

// Toggle adds or removes e.
func (s *Selection) Toggle(e *scene.Entity) {
	for i, n := range s.entities {
		if n != e {
			continue
		}
		s.entities = append(s.entities[:i], s.entities[i+1:]...)
		if s.Active == e {
			s.Active = nil
			if len(s.entities) > 0 {
				s.Active = s.entities[len(s.entities)-1]
			}
		}
		return
	}
	s.entities = append(s.entities, e)
	s.Active = e
}

func (s *Selection) IsSelected(e *scene.Entity) bool {
	for _, n := range s.entities {
		if n == e {
			return true
		}
	}
	return false
}

// Prune drops entities no longer in sc.
func (s *Selection) Prune(sc *scene.Scene) {
	kept := s.entities[:0]
	for _, e := range s.entities {
		if e.Scene() == sc {
			kept = append(kept, e)
		}
	}
	s.entities = kept
	if s.Active != nil && s.Active.Scene() != sc {
		s.Active = nil
	}
}

// Center is the mean world position of the selection.
func (s *Selection) Center() mgl32.Vec3 {
	var c mgl32.Vec3
	if len(s.entities) == 0 {
		return c
	}
	for _, e := range s.entities {
		c = c.Add(e.WorldPosition())
	}
	return c.Mul(1 / float32(len(s.entities)))
}
