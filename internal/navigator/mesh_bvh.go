package navigator

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

type bvhLeaf struct {
	min, max mgl64.Vec3
	tri      int
}

// MeshNode is a node of the triangle hierarchy of a meshed solid.
type MeshNode struct {
	min, max mgl64.Vec3
	left     *MeshNode
	right    *MeshNode
	leafTris []int // non-nil ⇒ leaf
}

func buildMeshBVH(tris []Triangle) *MeshNode {
	if len(tris) == 0 {
		return nil
	}
	leaves := make([]bvhLeaf, len(tris))
	for i := range tris {
		minP, maxP := tris[i].Bounds()
		leaves[i] = bvhLeaf{min: minP, max: maxP, tri: i}
	}
	return buildMeshBVHRec(leaves)
}

func buildMeshBVHRec(objs []bvhLeaf) *MeshNode {
	n := len(objs)
	if n == 0 {
		return nil
	}
	minP, maxP := objs[0].min, objs[0].max
	for i := 1; i < n; i++ {
		minP, maxP = aabbUnion(minP, maxP, objs[i].min, objs[i].max)
	}
	if n <= meshBVHMaxLeafSize {
		tris := make([]int, n)
		for i := range objs {
			tris[i] = objs[i].tri
		}
		return &MeshNode{min: minP, max: maxP, leafTris: tris}
	}

	// centroid spread
	cmin := centroid(objs[0])
	cmax := cmin
	for i := 1; i < n; i++ {
		c := centroid(objs[i])
		for a := 0; a < 3; a++ {
			cmin[a] = math.Min(cmin[a], c[a])
			cmax[a] = math.Max(cmax[a], c[a])
		}
	}
	spread := cmax.Sub(cmin)
	axis := longestAxis(spread)

	// If all centroids coincide (degenerate), fall back to longest box extent axis.
	if spread[axis] <= 1e-18 {
		axis = longestAxis(maxP.Sub(minP))
	}

	// Sort by chosen centroid axis, split at median
	sort.SliceStable(objs, func(i, j int) bool {
		return centroid(objs[i])[axis] < centroid(objs[j])[axis]
	})
	mid := n / 2
	return &MeshNode{
		min:   minP,
		max:   maxP,
		left:  buildMeshBVHRec(objs[:mid]),
		right: buildMeshBVHRec(objs[mid:]),
	}
}

func aabbUnion(aMin, aMax, bMin, bMax mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{
			math.Min(aMin[0], bMin[0]),
			math.Min(aMin[1], bMin[1]),
			math.Min(aMin[2], bMin[2]),
		}, mgl64.Vec3{
			math.Max(aMax[0], bMax[0]),
			math.Max(aMax[1], bMax[1]),
			math.Max(aMax[2], bMax[2]),
		}
}

func centroid(o bvhLeaf) mgl64.Vec3 { return o.min.Add(o.max).Mul(0.5) }

func longestAxis(v mgl64.Vec3) int {
	axis := 0
	if v[1] > v[axis] {
		axis = 1
	}
	if v[2] > v[axis] {
		axis = 2
	}
	return axis
}

// nearest returns the closest triangle hit with 0 < t < tMax.
// Iterative, stack-based, prunes by current best t.
func (root *MeshNode) nearest(tris []Triangle, O, D mgl64.Vec3, tMax float64) (float64, bool) {
	if root == nil {
		return 0, false
	}
	bestT := tMax
	found := false
	rr := computeRayRecips(D)

	stack := []*MeshNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tmin, tmax, ok := raySlab(O, n.min, n.max, rr)
		if !ok || tmax < 0 || tmin > bestT {
			continue
		}
		if n.leafTris != nil {
			for _, ti := range n.leafTris {
				if t, ok := tris[ti].Intersect(O, D); ok && t < bestT {
					bestT = t
					found = true
				}
			}
			continue
		}

		// order children near→far (push far first so near is processed next)
		lT, lOK := childEntry(n.left, O, rr, bestT)
		rT, rOK := childEntry(n.right, O, rr, bestT)
		if lOK && rOK {
			if lT < rT {
				stack = append(stack, n.right, n.left)
			} else {
				stack = append(stack, n.left, n.right)
			}
		} else if lOK {
			stack = append(stack, n.left)
		} else if rOK {
			stack = append(stack, n.right)
		}
	}
	return bestT, found
}

func childEntry(n *MeshNode, O mgl64.Vec3, rr rayRecips, bestT float64) (float64, bool) {
	if n == nil {
		return 0, false
	}
	tmin, tmax, ok := raySlab(O, n.min, n.max, rr)
	return tmin, ok && tmax >= 0 && tmin <= bestT
}

// crossings counts every triangle hit ahead of O, used for parity containment.
func (root *MeshNode) crossings(tris []Triangle, O, D mgl64.Vec3) int {
	if root == nil {
		return 0
	}
	rr := computeRayRecips(D)
	count := 0
	stack := []*MeshNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, tmax, ok := raySlab(O, n.min, n.max, rr); !ok || tmax < 0 {
			continue
		}
		if n.leafTris != nil {
			for _, ti := range n.leafTris {
				if _, ok := tris[ti].Intersect(O, D); ok {
					count++
				}
			}
			continue
		}
		if n.left != nil {
			stack = append(stack, n.left)
		}
		if n.right != nil {
			stack = append(stack, n.right)
		}
	}
	return count
}
