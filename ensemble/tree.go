// Package ensemble implements tree-ensemble regressors: gradient boosting
// with second-order (XGBoost/LightGBM style) split gain and a bagged random
// forest. Both share one exact-split tree builder.
package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TreeNode is a node of a regression tree. Fields are exported for gob.
type TreeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Value     float64
	Left      *TreeNode
	Right     *TreeNode

	// 診断用
	Gain  float64
	Count int
}

// Tree is a single regression tree.
type Tree struct {
	Root *TreeNode
}

// Predict returns the leaf value reached by row.
func (t *Tree) Predict(row []float64) float64 {
	n := t.Root
	if n == nil {
		return 0
	}
	for !n.Leaf {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var depth func(n *TreeNode) int
	depth = func(n *TreeNode) int {
		if n == nil || n.Leaf {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(t.Root)
}

const minSplitGain = 1e-12

// treeParams は木の成長を制御するパラメータ
type treeParams struct {
	maxDepth       int // <= 0 は無制限
	minSamplesLeaf int
	lambda         float64
}

// dataset は行優先で保持した学習データと特徴量ごとのソート済みインデックス
type dataset struct {
	x      []float64
	rows   int
	cols   int
	sorted [][]int
}

func newDataset(X mat.Matrix) *dataset {
	r, c := X.Dims()
	d := &dataset{x: make([]float64, r*c), rows: r, cols: c, sorted: make([][]int, c)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.x[i*c+j] = X.At(i, j)
		}
	}
	for j := 0; j < c; j++ {
		idx := make([]int, r)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return d.at(idx[a], j) < d.at(idx[b], j)
		})
		d.sorted[j] = idx
	}
	return d
}

func (d *dataset) at(i, j int) float64 { return d.x[i*d.cols+j] }

func (d *dataset) row(i int) []float64 { return d.x[i*d.cols : (i+1)*d.cols] }

// builder grows one tree from gradients and hessians.
//
// Leaf values are -G/(H+lambda). With squared error (g = pred - y, h = 1) this
// is the Newton step used by boosting; with g = -y and lambda = 0 it is the
// mean target used by the forest.
type builder struct {
	data   *dataset
	grad   []float64
	hess   []float64
	params treeParams

	// features は各ノードで探索する特徴量を返す
	features func() []int

	mark   []int
	nodeID int
	nRoot  int
}

func (b *builder) build(indices []int) *Tree {
	b.mark = make([]int, b.data.rows)
	for i := range b.mark {
		b.mark[i] = -1
	}
	b.nRoot = len(indices)
	return &Tree{Root: b.buildNode(indices, 0)}
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) leaf(sumGrad, sumHess float64, n int) *TreeNode {
	return &TreeNode{
		Leaf:  true,
		Value: -sumGrad / (sumHess + b.params.lambda),
		Count: n,
	}
}

func (b *builder) buildNode(indices []int, depth int) *TreeNode {
	sumGrad, sumHess := 0.0, 0.0
	for _, i := range indices {
		sumGrad += b.grad[i]
		sumHess += b.hess[i]
	}

	if (b.params.maxDepth > 0 && depth >= b.params.maxDepth) || len(indices) < 2*b.params.minSamplesLeaf {
		return b.leaf(sumGrad, sumHess, len(indices))
	}

	best := b.findBestSplit(indices, sumGrad, sumHess)
	if best.gain <= minSplitGain {
		return b.leaf(sumGrad, sumHess, len(indices))
	}

	var left, right []int
	for _, i := range indices {
		if b.data.at(i, best.feature) <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &TreeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Gain:      best.gain,
		Count:     len(indices),
		Left:      b.buildNode(left, depth+1),
		Right:     b.buildNode(right, depth+1),
	}
}

// ordered returns the node's samples sorted by feature j. Large nodes filter
// the presorted root order; small nodes sort their own copy.
func (b *builder) ordered(indices []int, j int, id int) []int {
	if len(indices)*16 >= b.nRoot {
		out := make([]int, 0, len(indices))
		for _, i := range b.data.sorted[j] {
			if b.mark[i] == id {
				out = append(out, i)
			}
		}
		return out
	}
	out := append([]int(nil), indices...)
	sort.SliceStable(out, func(a, c int) bool {
		va, vc := b.data.at(out[a], j), b.data.at(out[c], j)
		if va != vc {
			return va < vc
		}
		return out[a] < out[c]
	})
	return out
}

func (b *builder) findBestSplit(indices []int, totalGrad, totalHess float64) split {
	best := split{gain: math.Inf(-1)}
	id := b.nodeID
	b.nodeID++
	for _, i := range indices {
		b.mark[i] = id
	}
	parent := totalGrad * totalGrad / (totalHess + b.params.lambda)
	minLeaf := max(b.params.minSamplesLeaf, 1)

	for _, j := range b.features() {
		order := b.ordered(indices, j, id)
		leftGrad, leftHess := 0.0, 0.0
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			leftGrad += b.grad[i]
			leftHess += b.hess[i]

			leftCount := k + 1
			if leftCount < minLeaf || len(order)-leftCount < minLeaf {
				continue
			}
			cur, next := b.data.at(i, j), b.data.at(order[k+1], j)
			if cur == next {
				continue
			}
			rightGrad := totalGrad - leftGrad
			rightHess := totalHess - leftHess
			gain := 0.5 * (leftGrad*leftGrad/(leftHess+b.params.lambda) +
				rightGrad*rightGrad/(rightHess+b.params.lambda) - parent)
			if gain > best.gain {
				best = split{feature: j, threshold: (cur + next) / 2, gain: gain}
			}
		}
	}
	return best
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
