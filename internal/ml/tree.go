package ml

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	ObjectiveBinaryLogistic = "binary:logistic"
	ObjectiveBinaryLogitRaw = "binary:logitraw"
)

// TreeNode is one node of an XGBoost JSON dump (dump_model with_stats=True).
type TreeNode struct {
	NodeID         int        `json:"nodeid"`
	Depth          int        `json:"depth,omitempty"`
	Split          string     `json:"split,omitempty"`
	SplitCondition *float64   `json:"split_condition,omitempty"`
	Yes            int        `json:"yes,omitempty"`
	No             int        `json:"no,omitempty"`
	Missing        int        `json:"missing,omitempty"`
	Leaf           *float64   `json:"leaf,omitempty"`
	Cover          float64    `json:"cover"`
	Children       []TreeNode `json:"children,omitempty"`
}

type node struct {
	leaf      bool
	feature   int
	threshold float64
	yes       int
	no        int
	missing   int
	value     float64
	cover     float64
}

type tree struct {
	nodes []node
}

// TreeEnsemble is a gradient-boosted binary classifier. Splits send a row to
// the "yes" child when x < split_condition and to the "missing" child when x
// is NaN.
type TreeEnsemble struct {
	trees        []tree
	baseMargin   float64
	numFeatures  int
	featureNames []string
	objective    string
}

type TreeEnsembleSpec struct {
	Objective    string
	BaseScore    float64
	FeatureNames []string
	NumFeatures  int
	Trees        []TreeNode
}

func NewTreeEnsemble(spec TreeEnsembleSpec) (*TreeEnsemble, error) {
	objective := spec.Objective
	if objective == "" {
		objective = ObjectiveBinaryLogistic
	}
	if objective != ObjectiveBinaryLogistic && objective != ObjectiveBinaryLogitRaw {
		return nil, fmt.Errorf("%w: objective %q", ErrUnsupportedKind, objective)
	}

	baseScore := spec.BaseScore
	if baseScore == 0 {
		baseScore = 0.5
	}
	if baseScore <= 0 || baseScore >= 1 {
		return nil, fmt.Errorf("base_score must be in (0, 1), got %v", baseScore)
	}

	numFeatures := spec.NumFeatures
	if len(spec.FeatureNames) > 0 {
		if numFeatures != 0 && numFeatures != len(spec.FeatureNames) {
			return nil, fmt.Errorf("num_features %d disagrees with %d feature names", numFeatures, len(spec.FeatureNames))
		}
		numFeatures = len(spec.FeatureNames)
	}
	if numFeatures <= 0 {
		return nil, fmt.Errorf("tree ensemble needs feature_names or num_features")
	}
	if len(spec.Trees) == 0 {
		return nil, fmt.Errorf("tree ensemble has no trees")
	}

	index := make(map[string]int, len(spec.FeatureNames))
	for i, name := range spec.FeatureNames {
		index[name] = i
	}

	e := &TreeEnsemble{
		trees:        make([]tree, 0, len(spec.Trees)),
		baseMargin:   Logit(baseScore),
		numFeatures:  numFeatures,
		featureNames: append([]string(nil), spec.FeatureNames...),
		objective:    objective,
	}

	for i, root := range spec.Trees {
		t, err := flatten(root, index, numFeatures)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		e.trees = append(e.trees, t)
	}

	return e, nil
}

func flatten(root TreeNode, index map[string]int, numFeatures int) (tree, error) {
	byID := make(map[int]TreeNode)
	maxID := 0

	var walk func(n TreeNode) error
	walk = func(n TreeNode) error {
		if _, dup := byID[n.NodeID]; dup {
			return fmt.Errorf("duplicate node id %d", n.NodeID)
		}
		if n.NodeID < 0 {
			return fmt.Errorf("negative node id %d", n.NodeID)
		}
		byID[n.NodeID] = n
		if n.NodeID > maxID {
			maxID = n.NodeID
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return tree{}, err
	}
	if root.NodeID != 0 {
		return tree{}, fmt.Errorf("root node id is %d, want 0", root.NodeID)
	}

	t := tree{nodes: make([]node, maxID+1)}
	for id, n := range byID {
		if n.Cover <= 0 || math.IsNaN(n.Cover) {
			return tree{}, fmt.Errorf("node %d has no cover statistic", id)
		}

		if n.Leaf != nil {
			t.nodes[id] = node{leaf: true, value: *n.Leaf, cover: n.Cover}
			continue
		}

		if n.SplitCondition == nil {
			return tree{}, fmt.Errorf("node %d is neither a leaf nor a split", id)
		}
		feature, err := resolveFeature(n.Split, index, numFeatures)
		if err != nil {
			return tree{}, fmt.Errorf("node %d: %w", id, err)
		}
		for _, child := range []int{n.Yes, n.No, n.Missing} {
			if _, ok := byID[child]; !ok {
				return tree{}, fmt.Errorf("node %d references missing child %d", id, child)
			}
		}
		if n.Missing != n.Yes && n.Missing != n.No {
			return tree{}, fmt.Errorf("node %d missing branch %d is not a child", id, n.Missing)
		}

		t.nodes[id] = node{
			feature:   feature,
			threshold: *n.SplitCondition,
			yes:       n.Yes,
			no:        n.No,
			missing:   n.Missing,
			cover:     n.Cover,
		}
	}

	for id := range t.nodes {
		if _, ok := byID[id]; !ok {
			return tree{}, fmt.Errorf("node ids are not contiguous, %d is absent", id)
		}
	}

	return t, nil
}

func resolveFeature(split string, index map[string]int, numFeatures int) (int, error) {
	if i, ok := index[split]; ok {
		return i, nil
	}
	if strings.HasPrefix(split, "f") {
		if i, err := strconv.Atoi(split[1:]); err == nil && i >= 0 && i < numFeatures {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown split feature %q", split)
}

func (t *tree) next(n node, x []float64) int {
	v := x[n.feature]
	if math.IsNaN(v) {
		return n.missing
	}
	if v < n.threshold {
		return n.yes
	}
	return n.no
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for !t.nodes[i].leaf {
		i = t.next(t.nodes[i], x)
	}
	return t.nodes[i].value
}

// expectation is the cover-weighted mean leaf value below node i.
func (t *tree) expectation(i int) float64 {
	n := t.nodes[i]
	if n.leaf {
		return n.value
	}
	yes, no := t.nodes[n.yes].cover, t.nodes[n.no].cover
	return (yes*t.expectation(n.yes) + no*t.expectation(n.no)) / (yes + no)
}

func (e *TreeEnsemble) NumFeatures() int {
	return e.numFeatures
}

func (e *TreeEnsemble) FeatureNames() []string {
	return append([]string(nil), e.featureNames...)
}

func (e *TreeEnsemble) Margin(row []float64) (float64, error) {
	if len(row) != e.numFeatures {
		return 0, fmt.Errorf("%w: row has %d columns, model expects %d", ErrInputWidth, len(row), e.numFeatures)
	}

	margin := e.baseMargin
	for i := range e.trees {
		margin += e.trees[i].predict(row)
	}
	return margin, nil
}

func (e *TreeEnsemble) PredictProba(row []float64) ([2]float64, error) {
	m, err := e.Margin(row)
	if err != nil {
		return [2]float64{}, err
	}
	return probaFromMargin(m), nil
}
