package physics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidShape is returned when a scene description contains a shape
// that cannot be built.
var ErrInvalidShape = errors.New("invalid shape")

const rayEpsilon = 1e-9

// Shape is a static collider.
type Shape interface {
	// Intersect returns the ray parameter of the nearest intersection with
	// t >= 0, or false when the ray misses.
	Intersect(origin, dir r3.Vec) (float64, bool)
	Layer() int
}

// Plane is an infinite plane n·p = Offset.
type Plane struct {
	Normal r3.Vec
	Offset float64
	L      int
}

func (p Plane) Layer() int { return p.L }

func (p Plane) Intersect(origin, dir r3.Vec) (float64, bool) {
	denom := r3.Dot(p.Normal, dir)
	if math.Abs(denom) < rayEpsilon {
		return 0, false
	}
	t := (p.Offset - r3.Dot(p.Normal, origin)) / denom
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Sphere is a solid sphere.
type Sphere struct {
	Center r3.Vec
	Radius float64
	L      int
}

func (s Sphere) Layer() int { return s.L }

func (s Sphere) Intersect(origin, dir r3.Vec) (float64, bool) {
	oc := r3.Sub(origin, s.Center)
	b := r3.Dot(oc, dir)
	c := r3.Dot(oc, oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		// origin inside the sphere: report the exit point
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Box is an axis-aligned box.
type Box struct {
	Min, Max r3.Vec
	L        int
}

func (b Box) Layer() int { return b.L }

// Intersect uses the slab method.
func (b Box) Intersect(origin, dir r3.Vec) (float64, bool) {
	tMin, tMax := math.Inf(-1), math.Inf(1)
	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < rayEpsilon {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, false
			}
			continue
		}
		t1 := (lo[i] - o[i]) / d[i]
		t2 := (hi[i] - o[i]) / d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}
	if tMax < 0 {
		return 0, false
	}
	if tMin < 0 {
		return tMax, true
	}
	return tMin, true
}

// Scene is an immutable set of colliders implementing GeometryQuery.
type Scene struct {
	Name   string
	shapes []Shape
}

// NewScene creates a scene from shapes.
func NewScene(name string, shapes ...Shape) *Scene {
	return &Scene{Name: name, shapes: append([]Shape(nil), shapes...)}
}

// Len returns the number of colliders.
func (s *Scene) Len() int { return len(s.shapes) }

// Cast returns the nearest hit along the ray within maxDistance among
// shapes whose layer is selected by mask.
func (s *Scene) Cast(origin, dir r3.Vec, maxDistance float64, mask LayerMask) (Hit, bool) {
	best := Hit{Distance: math.Inf(1)}
	found := false
	for _, shape := range s.shapes {
		if !mask.Includes(shape.Layer()) {
			continue
		}
		t, ok := shape.Intersect(origin, dir)
		if !ok || t > maxDistance || t >= best.Distance {
			continue
		}
		best = Hit{Distance: t, Point: r3.Add(origin, r3.Scale(t, dir)), Layer: shape.Layer()}
		found = true
	}
	return best, found
}

// ShapeSpec is the YAML form of a collider.
type ShapeSpec struct {
	Type   string     `yaml:"type"`
	Layer  int        `yaml:"layer"`
	Normal [3]float64 `yaml:"normal,omitempty"`
	Offset float64    `yaml:"offset,omitempty"`
	Center [3]float64 `yaml:"center,omitempty"`
	Radius float64    `yaml:"radius,omitempty"`
	Min    [3]float64 `yaml:"min,omitempty"`
	Max    [3]float64 `yaml:"max,omitempty"`
}

// SceneSpec is the YAML form of a scene.
type SceneSpec struct {
	Name   string      `yaml:"name"`
	Shapes []ShapeSpec `yaml:"shapes"`
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// Build validates the spec and returns the scene.
func (spec SceneSpec) Build() (*Scene, error) {
	shapes := make([]Shape, 0, len(spec.Shapes))
	for i, ss := range spec.Shapes {
		if ss.Layer < 0 || ss.Layer > 31 {
			return nil, fmt.Errorf("%w: shape %d layer %d out of range [0,31]", ErrInvalidShape, i, ss.Layer)
		}
		switch ss.Type {
		case "plane":
			n := vec(ss.Normal)
			if r3.Norm(n) == 0 {
				return nil, fmt.Errorf("%w: shape %d plane normal is zero", ErrInvalidShape, i)
			}
			shapes = append(shapes, Plane{Normal: r3.Unit(n), Offset: ss.Offset, L: ss.Layer})
		case "sphere":
			if ss.Radius <= 0 {
				return nil, fmt.Errorf("%w: shape %d sphere radius must be positive, got %g", ErrInvalidShape, i, ss.Radius)
			}
			shapes = append(shapes, Sphere{Center: vec(ss.Center), Radius: ss.Radius, L: ss.Layer})
		case "box":
			lo, hi := vec(ss.Min), vec(ss.Max)
			if lo.X > hi.X || lo.Y > hi.Y || lo.Z > hi.Z {
				return nil, fmt.Errorf("%w: shape %d box min exceeds max", ErrInvalidShape, i)
			}
			shapes = append(shapes, Box{Min: lo, Max: hi, L: ss.Layer})
		default:
			return nil, fmt.Errorf("%w: shape %d unknown type %q", ErrInvalidShape, i, ss.Type)
		}
	}
	return NewScene(spec.Name, shapes...), nil
}
