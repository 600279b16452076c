package navigator

import (
	"go.uber.org/zap"
)

// MeshBVHStats summarizes a triangle hierarchy.
type MeshBVHStats struct {
	Nodes     int
	Leaves    int
	Triangles int
	Depth     int
}

// walk visits the subtree rooted at n in pre-order and returns its totals.
func (n *MeshNode) walk(depth int, visit func(n *MeshNode, depth int)) MeshBVHStats {
	if n == nil {
		return MeshBVHStats{}
	}
	if visit != nil {
		visit(n, depth)
	}
	if n.leafTris != nil {
		return MeshBVHStats{Nodes: 1, Leaves: 1, Triangles: len(n.leafTris), Depth: depth}
	}
	l := n.left.walk(depth+1, visit)
	r := n.right.walk(depth+1, visit)
	return MeshBVHStats{
		Nodes:     1 + l.Nodes + r.Nodes,
		Leaves:    l.Leaves + r.Leaves,
		Triangles: l.Triangles + r.Triangles,
		Depth:     max(l.Depth, r.Depth),
	}
}

// BVHStats counts the nodes of the solid's hierarchy.
func (s *MeshedSolid) BVHStats() MeshBVHStats {
	return s.root.walk(0, nil)
}

// DumpMeshBVH logs every node of the hierarchy at debug level, then the totals.
func DumpMeshBVH(log *zap.Logger, s *MeshedSolid) MeshBVHStats {
	log = log.With(zap.String("solid", s.Name()))
	st := s.root.walk(0, func(n *MeshNode, depth int) {
		kind, tris := "node", 0
		if n.leafTris != nil {
			kind, tris = "leaf", len(n.leafTris)
		}
		log.Debug("bvh "+kind,
			zap.Int("depth", depth),
			zap.Int("tris", tris),
			zap.Float64s("min", n.min[:]),
			zap.Float64s("max", n.max[:]))
	})
	log.Debug("bvh",
		zap.Int("nodes", st.Nodes),
		zap.Int("leaves", st.Leaves),
		zap.Int("tris", st.Triangles),
		zap.Int("depth", st.Depth))
	return st
}
