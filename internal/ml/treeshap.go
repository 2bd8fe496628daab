package ml

import "fmt"

// TreeExplainer computes exact path-dependent SHAP values for a TreeEnsemble
// (Lundberg et al., "Consistent Individualized Feature Attribution for Tree
// Ensembles", Algorithm 2). Attributions are in margin (log-odds) space.
type TreeExplainer struct {
	ensemble *TreeEnsemble
	expected float64
}

func NewTreeExplainer(e *TreeEnsemble) *TreeExplainer {
	expected := e.baseMargin
	for i := range e.trees {
		expected += e.trees[i].expectation(0)
	}
	return &TreeExplainer{ensemble: e, expected: expected}
}

func (x *TreeExplainer) ExpectedValue() float64 {
	return x.expected
}

func (x *TreeExplainer) Attribute(row []float64) (Attribution, error) {
	if len(row) != x.ensemble.numFeatures {
		return Attribution{}, fmt.Errorf("%w: row has %d columns, explainer expects %d", ErrInputWidth, len(row), x.ensemble.numFeatures)
	}

	phi := make([]float64, x.ensemble.numFeatures)
	for i := range x.ensemble.trees {
		t := &x.ensemble.trees[i]
		t.shap(row, phi, 0, 0, nil, 1, 1, -1)
	}

	return Attribution{Baseline: x.expected, Values: phi}, nil
}

type pathElement struct {
	feature      int
	zeroFraction float64
	oneFraction  float64
	weight       float64
}

// shap walks the tree carrying the unique feature path; depth is the index of
// the element this call appends.
func (t *tree) shap(x, phi []float64, nodeIndex, depth int, parent []pathElement, zeroFraction, oneFraction float64, feature int) {
	path := make([]pathElement, depth+1)
	copy(path, parent)
	extendPath(path, depth, zeroFraction, oneFraction, feature)

	n := t.nodes[nodeIndex]
	if n.leaf {
		for i := 1; i <= depth; i++ {
			w := unwoundPathSum(path, depth, i)
			el := path[i]
			phi[el.feature] += w * (el.oneFraction - el.zeroFraction) * n.value
		}
		return
	}

	hot := t.next(n, x)
	cold := n.no
	if hot == n.no {
		cold = n.yes
	}

	total := t.nodes[n.yes].cover + t.nodes[n.no].cover
	hotZero := t.nodes[hot].cover / total
	coldZero := t.nodes[cold].cover / total

	incomingZero, incomingOne := 1.0, 1.0
	for i := 0; i <= depth; i++ {
		if path[i].feature == n.feature {
			incomingZero = path[i].zeroFraction
			incomingOne = path[i].oneFraction
			unwindPath(path, depth, i)
			depth--
			break
		}
	}

	t.shap(x, phi, hot, depth+1, path[:depth+1], hotZero*incomingZero, incomingOne, n.feature)
	t.shap(x, phi, cold, depth+1, path[:depth+1], coldZero*incomingZero, 0, n.feature)
}

func extendPath(path []pathElement, depth int, zeroFraction, oneFraction float64, feature int) {
	path[depth] = pathElement{
		feature:      feature,
		zeroFraction: zeroFraction,
		oneFraction:  oneFraction,
	}
	if depth == 0 {
		path[depth].weight = 1
	}

	d := float64(depth + 1)
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += oneFraction * path[i].weight * float64(i+1) / d
		path[i].weight = zeroFraction * path[i].weight * float64(depth-i) / d
	}
}

func unwindPath(path []pathElement, depth, index int) {
	one := path[index].oneFraction
	zero := path[index].zeroFraction
	next := path[depth].weight
	d := float64(depth + 1)

	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * d / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(depth-i)/d
		} else {
			path[i].weight = path[i].weight * d / (zero * float64(depth-i))
		}
	}

	for i := index; i < depth; i++ {
		path[i].feature = path[i+1].feature
		path[i].zeroFraction = path[i+1].zeroFraction
		path[i].oneFraction = path[i+1].oneFraction
	}
}

func unwoundPathSum(path []pathElement, depth, index int) float64 {
	one := path[index].oneFraction
	zero := path[index].zeroFraction
	next := path[depth].weight
	total := 0.0

	if one != 0 {
		for i := depth - 1; i >= 0; i-- {
			tmp := next / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)
		}
	} else {
		for i := depth - 1; i >= 0; i-- {
			total += path[i].weight / (zero * float64(depth-i))
		}
	}

	return total * float64(depth+1)
}
