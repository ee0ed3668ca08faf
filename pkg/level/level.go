// Package level reads level descriptions and turns them into the mesh
// instances the BSP compiler consumes.
//
// A level is a YAML document listing meshes: inward-facing rooms, solid
// boxes, single quads, extruded tile grids (inline or read from a .gat
// walkability file) and raw triangles, each with an optional transform.
package level

import (
	"context"
	"errors"
	"fmt"
	gomath "math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-pvs/pkg/bsp"
	"github.com/Faultbox/midgard-pvs/pkg/formats"
	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// ErrInvalidLevel is returned for documents that fail schema validation.
var ErrInvalidLevel = errors.New("invalid level")

// Level is a decoded level description.
type Level struct {
	Name   string     `yaml:"name"`
	ID     string     `yaml:"id,omitempty"`
	Meshes []MeshSpec `yaml:"meshes"`
}

// MeshSpec describes one mesh. Which fields apply depends on Type.
type MeshSpec struct {
	Type string `yaml:"type"`

	// room, box
	Min []float64 `yaml:"min,omitempty"`
	Max []float64 `yaml:"max,omitempty"`

	// quad
	Points      [][]float64 `yaml:"points,omitempty"`
	DoubleSided bool        `yaml:"double_sided,omitempty"`

	// grid
	Rows   []string  `yaml:"rows,omitempty"`
	Cell   float64   `yaml:"cell,omitempty"`
	Height float64   `yaml:"height,omitempty"`
	Origin []float64 `yaml:"origin,omitempty"`

	// gat: a walkability grid file, relative to the level file. Uses
	// Cell, Height and Origin like grid.
	File string `yaml:"file,omitempty"`
	dir  string

	// triangles
	Triangles [][][]float64 `yaml:"triangles,omitempty"`

	Translate []float64 `yaml:"translate,omitempty"`
	Scale     []float64 `yaml:"scale,omitempty"`
	RotateZ   float64   `yaml:"rotate_z,omitempty"` // degrees
}

// Load reads and validates a level file.
func Load(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read level: %w", err)
	}
	lvl, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range lvl.Meshes {
		lvl.Meshes[i].dir = filepath.Dir(path)
	}
	return lvl, nil
}

// Parse validates data against the level schema and decodes it.
func Parse(data []byte) (*Level, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidLevel)
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	var lvl Level
	if err := yaml.Unmarshal(data, &lvl); err != nil {
		return nil, fmt.Errorf("decode level: %w", err)
	}
	return &lvl, nil
}

// Instances builds one instance per mesh.
func (l *Level) Instances() ([]bsp.Instance, error) {
	instances := make([]bsp.Instance, 0, len(l.Meshes))
	for i := range l.Meshes {
		inst, err := l.Meshes[i].Instance()
		if err != nil {
			return nil, fmt.Errorf("mesh %d (%s): %w", i, l.Meshes[i].Type, err)
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Compile builds the tree for the level. A level id, when present, is
// stamped on the tree so the output file keeps a stable identity across
// rebuilds.
func (l *Level) Compile(ctx context.Context, opts bsp.Options) (*bsp.Tree, error) {
	var id uuid.UUID
	if l.ID != "" {
		var err error
		if id, err = uuid.Parse(l.ID); err != nil {
			return nil, fmt.Errorf("%w: id: %w", ErrInvalidLevel, err)
		}
	}
	instances, err := l.Instances()
	if err != nil {
		return nil, err
	}
	tree, err := bsp.BuildContext(ctx, instances, opts)
	if err != nil {
		return nil, err
	}
	if id != uuid.Nil {
		tree.ID = id
	}
	return tree, nil
}

// Instance generates the mesh and its transform.
func (m *MeshSpec) Instance() (bsp.Instance, error) {
	mesh, err := m.mesh()
	if err != nil {
		return bsp.Instance{}, err
	}
	return bsp.Instance{Mesh: mesh, Transform: m.Transform()}, nil
}

// Transform returns translate * rotate_z * scale.
func (m *MeshSpec) Transform() math.Mat4 {
	xf := math.Identity()
	if len(m.Translate) == 3 {
		xf = xf.Mul(math.Translate(m.Translate[0], m.Translate[1], m.Translate[2]))
	}
	if m.RotateZ != 0 {
		xf = xf.Mul(math.RotateZ(m.RotateZ * gomath.Pi / 180))
	}
	if len(m.Scale) == 3 {
		xf = xf.Mul(math.Scale(m.Scale[0], m.Scale[1], m.Scale[2]))
	}
	return xf
}

func (m *MeshSpec) mesh() (*bsp.TriangleMesh, error) {
	switch m.Type {
	case "room", "box":
		lo, hi := vec3(m.Min), vec3(m.Max)
		if lo.X >= hi.X || lo.Y >= hi.Y || lo.Z >= hi.Z {
			return nil, fmt.Errorf("%w: min %v not below max %v", ErrInvalidBox, lo, hi)
		}
		if m.Type == "room" {
			return BoxRoom(lo, hi), nil
		}
		return Box(lo, hi), nil

	case "quad":
		if len(m.Points) != 4 {
			return nil, fmt.Errorf("%w: quad needs 4 points", ErrInvalidLevel)
		}
		return Quad(vec3(m.Points[0]), vec3(m.Points[1]), vec3(m.Points[2]), vec3(m.Points[3]), m.DoubleSided), nil

	case "grid":
		g := Grid{Rows: m.Rows, Cell: m.Cell, Height: m.Height, Origin: vec3(m.Origin)}
		return g.Mesh()

	case "gat":
		path := m.File
		if !filepath.IsAbs(path) && m.dir != "" {
			path = filepath.Join(m.dir, path)
		}
		gat, err := formats.ParseGATFile(path)
		if err != nil {
			return nil, err
		}
		g := Grid{Rows: gat.Rows(), Cell: m.Cell, Height: m.Height, Origin: vec3(m.Origin)}
		return g.Mesh()

	case "triangles":
		mesh := &bsp.TriangleMesh{}
		for _, tri := range m.Triangles {
			if len(tri) != 3 {
				return nil, fmt.Errorf("%w: triangle needs 3 points", ErrInvalidLevel)
			}
			mesh.AddTriangle(vec3(tri[0]), vec3(tri[1]), vec3(tri[2]))
		}
		return mesh, nil

	default:
		return nil, fmt.Errorf("%w: unknown mesh type %q", ErrInvalidLevel, m.Type)
	}
}

// vec3 converts a decoded triple; missing components are zero.
func vec3(v []float64) math.Vec3 {
	var out math.Vec3
	if len(v) > 0 {
		out.X = v[0]
	}
	if len(v) > 1 {
		out.Y = v[1]
	}
	if len(v) > 2 {
		out.Z = v[2]
	}
	return out
}
