package bsp

import (
	gomath "math"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// Mesh supplies an indexed triangle list. Triangles are wound
// counter-clockwise seen from the empty side, so their normals point into
// open space.
type Mesh interface {
	Vertices() []math.Vec3
	Indices() []uint32
}

// TriangleMesh is a Mesh assembled in code.
type TriangleMesh struct {
	Verts []math.Vec3
	Idx   []uint32
}

// Vertices implements Mesh.
func (m *TriangleMesh) Vertices() []math.Vec3 { return m.Verts }

// Indices implements Mesh.
func (m *TriangleMesh) Indices() []uint32 { return m.Idx }

// AddTriangle appends one triangle.
func (m *TriangleMesh) AddTriangle(a, b, c math.Vec3) {
	base := uint32(len(m.Verts))
	m.Verts = append(m.Verts, a, b, c)
	m.Idx = append(m.Idx, base, base+1, base+2)
}

// AddQuad appends the quad a-b-c-d as two triangles sharing the a-c edge.
func (m *TriangleMesh) AddQuad(a, b, c, d math.Vec3) {
	base := uint32(len(m.Verts))
	m.Verts = append(m.Verts, a, b, c, d)
	m.Idx = append(m.Idx, base, base+1, base+2, base, base+2, base+3)
}

// AddQuadFacing appends a quad whose normal points along want, reversing
// the vertex order when needed.
func (m *TriangleMesh) AddQuadFacing(a, b, c, d, want math.Vec3) {
	if b.Sub(a).Cross(c.Sub(a)).Dot(want) < 0 {
		a, b, c, d = d, c, b, a
	}
	m.AddQuad(a, b, c, d)
}

// Append copies every triangle of other into m.
func (m *TriangleMesh) Append(other Mesh) {
	base := uint32(len(m.Verts))
	m.Verts = append(m.Verts, other.Vertices()...)
	for _, i := range other.Indices() {
		m.Idx = append(m.Idx, base+i)
	}
}

// TriangleCount returns the number of triangles.
func (m *TriangleMesh) TriangleCount() int {
	return len(m.Idx) / 3
}

// Instance places a mesh in the world.
type Instance struct {
	Mesh      Mesh
	Transform math.Mat4
}

// NewInstance returns an untransformed instance of mesh.
func NewInstance(mesh Mesh) Instance {
	return Instance{Mesh: mesh, Transform: math.Identity()}
}

// mergeResult is the world-space winding soup fed to the tree builder.
type mergeResult struct {
	pool      vertexPool
	windings  []Winding
	planes    *planeSet
	bounds    math.AABB
	triangles int
	rejected  int
}

// mergeInstances transforms every instance into world space, welds
// vertices and turns each valid triangle into a winding.
func mergeInstances(instances []Instance, opts Options) *mergeResult {
	res := &mergeResult{
		planes: newPlaneSet(opts.NormalEpsilon, opts.DistEpsilon),
		bounds: math.EmptyAABB(),
	}

	// Group vertices by quantized position for O(n) welding
	weld := make(map[[3]int64]math.Vec3)
	quantize := func(p math.Vec3) math.Vec3 {
		key := [3]int64{
			int64(gomath.Round(p.X / opts.WeldEpsilon)),
			int64(gomath.Round(p.Y / opts.WeldEpsilon)),
			int64(gomath.Round(p.Z / opts.WeldEpsilon)),
		}
		if w, ok := weld[key]; ok {
			return w
		}
		weld[key] = p
		return p
	}

	for _, inst := range instances {
		if inst.Mesh == nil {
			continue
		}
		xf := inst.Transform
		if xf == (math.Mat4{}) {
			xf = math.Identity()
		}
		mirrored := xf.Det3() < 0

		verts := inst.Mesh.Vertices()
		world := make([]math.Vec3, len(verts))
		for i, v := range verts {
			world[i] = quantize(xf.TransformVec3(v))
		}

		idx := inst.Mesh.Indices()
		for t := 0; t+2 < len(idx); t += 3 {
			res.triangles++
			i0, i1, i2 := idx[t], idx[t+1], idx[t+2]
			if int(i0) >= len(world) || int(i1) >= len(world) || int(i2) >= len(world) {
				res.rejected++
				continue
			}
			a, b, c := world[i0], world[i1], world[i2]
			if mirrored {
				b, c = c, b
			}

			// Reject degenerate triangles
			if b.Sub(a).Cross(c.Sub(a)).Length()*0.5 < opts.MinTriangleArea {
				res.rejected++
				continue
			}
			pl, ok := math.PlaneFromPoints(a, b, c)
			if !ok {
				res.rejected++
				continue
			}

			first, count := res.pool.add([]math.Vec3{a, b, c})
			res.windings = append(res.windings, Winding{
				First: first,
				Count: count,
				Plane: res.planes.find(pl),
			})
			res.bounds = res.bounds.Extend(a).Extend(b).Extend(c)
		}
		// Trailing indices that do not form a triangle
		if r := len(idx) % 3; r != 0 {
			res.rejected++
		}
	}
	return res
}
