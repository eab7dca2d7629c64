package models

import (
	"math"
)

// TreeNode is one node of a regression tree fitted to gradient statistics.
// Leaves carry Weight, already scaled by the learning rate.
type TreeNode struct {
	IsLeaf    bool
	Feature   int
	Threshold float64
	Weight    float64
	Left      *TreeNode
	Right     *TreeNode
	Cover     float64
	Gain      float64
}

func (n *TreeNode) predict(x []float64) float64 {
	node := n
	for !node.IsLeaf {
		v := x[node.Feature]
		if math.IsNaN(v) || v < node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Weight
}

func (n *TreeNode) depth() int {
	if n == nil || n.IsLeaf {
		return 0
	}
	l, r := n.Left.depth(), n.Right.depth()
	if l > r {
		return l + 1
	}
	return r + 1
}

func (n *TreeNode) leaves() int {
	if n.IsLeaf {
		return 1
	}
	return n.Left.leaves() + n.Right.leaves()
}

func (n *TreeNode) addGain(importance []float64) {
	if n.IsLeaf {
		return
	}
	importance[n.Feature] += n.Gain
	n.Left.addGain(importance)
	n.Right.addGain(importance)
}

// treeBuilder grows one tree level by level. Feature orders are sorted once
// per Fit and shared by every tree; a level costs one pass per feature.
type treeBuilder struct {
	X      [][]float64
	order  [][]int
	params BoosterParams
}

type growing struct {
	node *TreeNode
	G, H float64
}

type candidate struct {
	gain      float64
	feature   int
	threshold float64
	found     bool
}

type scanState struct {
	GL, HL float64
	last   float64
	seen   bool
}

func (p BoosterParams) thresholdL1(g float64) float64 {
	switch {
	case g > p.RegAlpha:
		return g - p.RegAlpha
	case g < -p.RegAlpha:
		return g + p.RegAlpha
	default:
		return 0
	}
}

func (p BoosterParams) score(G, H float64) float64 {
	if H+p.RegLambda <= 0 {
		return 0
	}
	t := p.thresholdL1(G)
	return t * t / (H + p.RegLambda)
}

func (p BoosterParams) leafWeight(G, H float64) float64 {
	if H+p.RegLambda <= 0 {
		return 0
	}
	return -p.thresholdL1(G) / (H + p.RegLambda) * p.LearningRate
}

// build fits a tree to gradients g and hessians h over the rows flagged in
// rows, considering only the listed features.
func (tb *treeBuilder) build(g, h []float64, rows []bool, features []int) *TreeNode {
	p := tb.params
	nodeOf := make([]int, len(tb.X))

	root := &growing{node: &TreeNode{}}
	for i := range nodeOf {
		if rows[i] {
			nodeOf[i] = 0
			root.G += g[i]
			root.H += h[i]
		} else {
			nodeOf[i] = -1
		}
	}
	level := []*growing{root}

	for depth := 0; len(level) > 0; depth++ {
		if depth >= p.MaxDepth {
			for _, gn := range level {
				tb.makeLeaf(gn)
			}
			break
		}

		best := tb.findSplits(level, nodeOf, g, h, features)

		next := make([]*growing, 0, 2*len(level))
		childOf := make([]int, len(level))
		for k, gn := range level {
			if !best[k].found || best[k].gain <= 0 {
				tb.makeLeaf(gn)
				childOf[k] = -1
				continue
			}
			gn.node.Feature = best[k].feature
			gn.node.Threshold = best[k].threshold
			gn.node.Gain = best[k].gain
			gn.node.Cover = gn.H
			gn.node.Left = &TreeNode{}
			gn.node.Right = &TreeNode{}
			childOf[k] = len(next)
			next = append(next,
				&growing{node: gn.node.Left},
				&growing{node: gn.node.Right})
		}

		for i, k := range nodeOf {
			if k < 0 {
				continue
			}
			base := childOf[k]
			if base < 0 {
				nodeOf[i] = -1
				continue
			}
			split := level[k].node
			child := base
			if !(tb.X[i][split.Feature] < split.Threshold) {
				child = base + 1
			}
			nodeOf[i] = child
			next[child].G += g[i]
			next[child].H += h[i]
		}

		level = next
	}

	return root.node
}

func (tb *treeBuilder) makeLeaf(gn *growing) {
	gn.node.IsLeaf = true
	gn.node.Cover = gn.H
	gn.node.Weight = tb.params.leafWeight(gn.G, gn.H)
}

func (tb *treeBuilder) findSplits(level []*growing, nodeOf []int, g, h []float64, features []int) []candidate {
	p := tb.params
	best := make([]candidate, len(level))
	parent := make([]float64, len(level))
	for k, gn := range level {
		parent[k] = p.score(gn.G, gn.H)
	}

	state := make([]scanState, len(level))
	for _, f := range features {
		for k := range state {
			state[k] = scanState{}
		}
		for _, i := range tb.order[f] {
			k := nodeOf[i]
			if k < 0 {
				continue
			}
			x := tb.X[i][f]
			st := &state[k]
			if st.seen && x != st.last {
				GR := level[k].G - st.GL
				HR := level[k].H - st.HL
				if st.HL >= p.MinChildWeight && HR >= p.MinChildWeight {
					gain := 0.5*(p.score(st.GL, st.HL)+p.score(GR, HR)-parent[k]) - p.Gamma
					if !best[k].found || gain > best[k].gain {
						threshold := st.last + (x-st.last)/2
						if threshold <= st.last {
							threshold = x
						}
						best[k] = candidate{gain: gain, feature: f, threshold: threshold, found: true}
					}
				}
			}
			st.GL += g[i]
			st.HL += h[i]
			st.last = x
			st.seen = true
		}
	}
	return best
}
