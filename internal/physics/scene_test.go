package physics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestLayerMask_Includes(t *testing.T) {
	m := LayerMask(1<<0 | 1<<3)
	assert.True(t, m.Includes(0))
	assert.True(t, m.Includes(3))
	assert.False(t, m.Includes(1))
	assert.False(t, m.Includes(-1))
	assert.False(t, m.Includes(32))
	assert.True(t, AllLayers.Includes(31))
}

func TestShapes_Intersect(t *testing.T) {
	fwd := r3.Vec{Z: 1}
	tests := []struct {
		name   string
		shape  Shape
		origin r3.Vec
		dir    r3.Vec
		wantT  float64
		wantOK bool
	}{
		{"wall ahead", Plane{Normal: r3.Vec{Z: -1}, Offset: -10}, r3.Vec{}, fwd, 10, true},
		{"wall behind", Plane{Normal: r3.Vec{Z: -1}, Offset: 10}, r3.Vec{}, fwd, 0, false},
		{"parallel to plane", Plane{Normal: r3.Vec{Y: 1}, Offset: 0}, r3.Vec{Y: 1}, fwd, 0, false},
		{"sphere ahead", Sphere{Center: r3.Vec{Z: 5}, Radius: 1}, r3.Vec{}, fwd, 4, true},
		{"sphere miss", Sphere{Center: r3.Vec{X: 3, Z: 5}, Radius: 1}, r3.Vec{}, fwd, 0, false},
		{"inside sphere", Sphere{Center: r3.Vec{}, Radius: 2}, r3.Vec{}, fwd, 2, true},
		{"box ahead", Box{Min: r3.Vec{X: -1, Y: -1, Z: 3}, Max: r3.Vec{X: 1, Y: 1, Z: 4}}, r3.Vec{}, fwd, 3, true},
		{"box beside", Box{Min: r3.Vec{X: 2, Y: -1, Z: 3}, Max: r3.Vec{X: 3, Y: 1, Z: 4}}, r3.Vec{}, fwd, 0, false},
		{"box behind", Box{Min: r3.Vec{X: -1, Y: -1, Z: -4}, Max: r3.Vec{X: 1, Y: 1, Z: -3}}, r3.Vec{}, fwd, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.shape.Intersect(tc.origin, tc.dir)
			require.Equal(t, tc.wantOK, ok)
			if ok {
				assert.InDelta(t, tc.wantT, got, 1e-9)
			}
		})
	}
}

func TestScene_CastNearestWithinRange(t *testing.T) {
	s := NewScene("test",
		Plane{Normal: r3.Vec{Z: -1}, Offset: -20, L: 0},
		Sphere{Center: r3.Vec{Z: 8}, Radius: 1, L: 2},
	)
	fwd := r3.Vec{Z: 1}

	hit, ok := s.Cast(r3.Vec{}, fwd, 100, AllLayers)
	require.True(t, ok)
	assert.InDelta(t, 7.0, hit.Distance, 1e-9)
	assert.Equal(t, 2, hit.Layer)
	assert.InDelta(t, 7.0, hit.Point.Z, 1e-9)

	// masking out the sphere exposes the wall
	hit, ok = s.Cast(r3.Vec{}, fwd, 100, LayerMask(1))
	require.True(t, ok)
	assert.InDelta(t, 20.0, hit.Distance, 1e-9)

	_, ok = s.Cast(r3.Vec{}, fwd, 5, AllLayers)
	assert.False(t, ok, "hits beyond maxDistance are not reported")
}

func TestSceneSpec_Build(t *testing.T) {
	_, err := SceneSpec{Shapes: []ShapeSpec{{Type: "cone"}}}.Build()
	assert.True(t, errors.Is(err, ErrInvalidShape))

	_, err = SceneSpec{Shapes: []ShapeSpec{{Type: "sphere", Radius: 0}}}.Build()
	assert.True(t, errors.Is(err, ErrInvalidShape))

	_, err = SceneSpec{Shapes: []ShapeSpec{{Type: "plane"}}}.Build()
	assert.True(t, errors.Is(err, ErrInvalidShape))

	_, err = SceneSpec{Shapes: []ShapeSpec{{Type: "box", Layer: 40}}}.Build()
	assert.True(t, errors.Is(err, ErrInvalidShape))

	s, err := SceneSpec{Name: "ok", Shapes: []ShapeSpec{
		{Type: "plane", Normal: [3]float64{0, 2, 0}},
		{Type: "box", Min: [3]float64{0, 0, 0}, Max: [3]float64{1, 1, 1}},
	}}.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestLoadScene(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	data := `
name: corridor
shapes:
  - type: plane
    normal: [0, 1, 0]
    offset: 0
  - type: box
    layer: 1
    min: [-1, 0, 10]
    max: [1, 2, 11]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := LoadScene(path)
	require.NoError(t, err)
	assert.Equal(t, "corridor", s.Name)
	assert.Equal(t, 2, s.Len())

	hit, ok := s.Cast(r3.Vec{Y: 1}, r3.Vec{Z: 1}, 50, AllLayers)
	require.True(t, ok)
	assert.InDelta(t, 10.0, hit.Distance, 1e-9)

	_, err = LoadScene(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("shapes: [[["), 0o644))
	_, err = LoadScene(path)
	assert.Error(t, err)
}
