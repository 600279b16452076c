package navigator

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl64"
)

// solidBox indexes the global bounds of a solid.
type solidBox struct {
	id   int32
	rect rtreego.Rect
}

func (b solidBox) Bounds() rtreego.Rect { return b.rect }

func boundsRect(minP, maxP mgl64.Vec3, minLen float64) (rtreego.Rect, error) {
	lengths := make([]float64, 3)
	for a := 0; a < 3; a++ {
		lengths[a] = maxP[a] - minP[a]
		if lengths[a] < minLen {
			lengths[a] = minLen
		}
	}
	return rtreego.NewRect(rtreego.Point{minP[0], minP[1], minP[2]}, lengths)
}

// buildIndex rebuilds the spatial index of the solids' global bounds.
func (n *Navigator) buildIndex() error {
	tree := rtreego.NewTree(3, 2, 5)
	for _, s := range n.solids {
		minP, maxP := s.OBB().GlobalBounds()
		r, err := boundsRect(minP, maxP, n.params.GeometryTolerance)
		if err != nil {
			return ConfigError("Navigator", "Initialize", "solid %q: bad bounds: %v", s.Name(), err)
		}
		tree.Insert(solidBox{id: s.ID(), rect: r})
	}
	n.tree = tree
	return nil
}

// Overlaps returns the pairs of solids whose global bounds intersect, lowest
// id first, sorted.
func (n *Navigator) Overlaps() [][2]int32 {
	if n.tree == nil {
		return nil
	}
	var pairs [][2]int32
	for _, s := range n.solids {
		minP, maxP := s.OBB().GlobalBounds()
		r, err := boundsRect(minP, maxP, n.params.GeometryTolerance)
		if err != nil {
			continue
		}
		for _, hit := range n.tree.SearchIntersect(r) {
			if other := hit.(solidBox).id; other > s.ID() {
				pairs = append(pairs, [2]int32{s.ID(), other})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

// SolidsAt returns the ids of the solids whose OBB contains the global point,
// in ascending order.
func (n *Navigator) SolidsAt(p mgl64.Vec3) []int32 {
	if n.tree == nil {
		return nil
	}
	tol := n.params.GeometryTolerance
	r, err := boundsRect(p.Sub(mgl64.Vec3{tol, tol, tol}), p.Add(mgl64.Vec3{tol, tol, tol}), tol)
	if err != nil {
		return nil
	}
	var ids []int32
	for _, hit := range n.tree.SearchIntersect(r) {
		id := hit.(solidBox).id
		o := n.solids[id].OBB()
		if o.Contains(o.Transformation().GlobalToLocalPosition(p)) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
