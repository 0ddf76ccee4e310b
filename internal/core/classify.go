package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xgirouxb/open-ice/internal/catalog"
	"github.com/xgirouxb/open-ice/internal/raster"
)

// Surface classes produced by the decision trees.
const (
	classWater = 0
	classIce   = 1
	classCloud = 9
)

// Pixels within this squared distance of a detected cloud are discarded,
// buffering cloud edges and shadows.
const cloudBufferDistSq = 30

// Decision trees trained in R (rpart) on manually labelled ice, water, and
// cloud samples, serialized in rpart's print format. Node n has children 2n
// (condition holds) and 2n+1.
const treeTextL7TOA = `1) root 826599 551066 0 (0.333333333 0.333333333 0.333333333)
  2) swir2< 0.08972447 549042 274065 0 (0.500830538 0.491060793 0.008108669)
    4) blue< 0.164955 279825   7972 0 (0.971510766 0.027481462 0.001007773) *
    5) blue>=0.164955 269217   7294 1 (0.011604022 0.972906614 0.015489364) *
  3) swir2>=0.08972447 277557   6476 9 (0.002003192 0.021328952 0.976667856) *`

const treeTextL8TOA = `1) root 1173627 782418 0 (3.333333e-01 3.333333e-01 3.333333e-01)
  2) blue< 0.1435298 393042   1892 0 (9.951863e-01 4.750128e-03 6.360643e-05) *
  3) blue>=0.1435298 780585 389401 9 (7.558434e-05 4.987823e-01 5.011421e-01)
    6) ndsi>=0.848531 388513    342 1 (4.633050e-05 9.991197e-01 8.339489e-04) *
    7) ndsi< 0.848531 392072   1212 9 (1.045726e-04 2.986696e-03 9.969087e-01) *`

const treeTextS2TOA = `1) root 901695 601130 0 (3.333333e-01 3.333333e-01 3.333333e-01)
  2) blue< 0.1408 307367   6950 0 (9.773886e-01 2.253332e-02 7.808255e-05) *
  3) blue>=0.1408 594328 293787 9 (2.490207e-04 4.940689e-01 5.056820e-01)
    6) ndsi>=0.8190071 298871   6850 1 (6.022665e-05 9.770804e-01 2.285936e-02) *
    7) ndsi< 0.8190071 295457   1748 9 (4.399963e-04 5.476262e-03 9.940837e-01) *`

type classifier struct {
	tree  *decisionTree
	bands []string
}

var classifiers = map[catalog.Product]classifier{
	catalog.Landsat7TOA:  {tree: mustParseTree(treeTextL7TOA), bands: []string{"blue", "swir2"}},
	catalog.Landsat8TOA:  {tree: mustParseTree(treeTextL8TOA), bands: []string{"blue", "ndsi"}},
	catalog.Sentinel2TOA: {tree: mustParseTree(treeTextS2TOA), bands: []string{"blue", "ndsi"}},
}

type treeNode struct {
	field     string
	op        string
	threshold float64
	class     int
	leaf      bool
}

type decisionTree struct {
	nodes map[int]*treeNode
}

var rpartLine = regexp.MustCompile(`^\s*(\d+)\)\s+(root|(\w+)\s*(>=|<=|>|<)\s*([-+0-9.eE]+))\s+\d+\s+\d+\s+(\S+)\s+\([^)]*\)\s*(\*)?\s*$`)

// parseRpartTree parses a decision tree in rpart's text serialization.
func parseRpartTree(text string) (*decisionTree, error) {
	nodes := make(map[int]*treeNode)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := rpartLine.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("unparseable tree line %q", line)
		}

		id, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("bad node id in %q: %w", line, err)
		}
		class, err := strconv.Atoi(m[6])
		if err != nil {
			return nil, fmt.Errorf("bad class label in %q: %w", line, err)
		}

		node := &treeNode{class: class, leaf: m[7] == "*"}
		if m[2] != "root" {
			node.field = m[3]
			node.op = m[4]
			node.threshold, err = strconv.ParseFloat(m[5], 64)
			if err != nil {
				return nil, fmt.Errorf("bad threshold in %q: %w", line, err)
			}
		}
		nodes[id] = node
	}

	if _, ok := nodes[1]; !ok {
		return nil, fmt.Errorf("tree has no root node")
	}
	return &decisionTree{nodes: nodes}, nil
}

func mustParseTree(text string) *decisionTree {
	tree, err := parseRpartTree(text)
	if err != nil {
		panic(err)
	}
	return tree
}

func (n *treeNode) matches(features map[string]float64) bool {
	v := features[n.field]
	switch n.op {
	case "<":
		return v < n.threshold
	case "<=":
		return v <= n.threshold
	case ">":
		return v > n.threshold
	case ">=":
		return v >= n.threshold
	}
	return false
}

// classify walks the tree from the root for one pixel's feature values.
func (t *decisionTree) classify(features map[string]float64) (int, error) {
	node := t.nodes[1]
	id := 1
	for !node.leaf {
		left, lok := t.nodes[2*id]
		right, rok := t.nodes[2*id+1]
		if !lok || !rok {
			return 0, fmt.Errorf("tree node %d is not a leaf but has no children", id)
		}
		if left.matches(features) {
			node, id = left, 2*id
		} else {
			node, id = right, 2*id+1
		}
	}
	return node.class, nil
}

// ClassifyIce classifies prepped bands into an ice presence image: 1 where
// ice, 0 where open water. Cloud pixels and everything within the cloud
// buffer distance of them are masked out.
func ClassifyIce(product catalog.Product, bands map[string]*raster.Image) (*raster.Image, error) {
	c, ok := classifiers[product]
	if !ok {
		return nil, fmt.Errorf("no classifier for product %q", product)
	}

	inputs := make([]*raster.Image, len(c.bands))
	for i, name := range c.bands {
		img, ok := bands[name]
		if !ok {
			return nil, fmt.Errorf("classifier for %s needs band %s", product, name)
		}
		inputs[i] = img
	}

	w, h := inputs[0].W, inputs[0].H
	classes := raster.New(w, h)
	cloud := raster.New(w, h)
	features := make(map[string]float64, len(c.bands))
	for i := 0; i < classes.Len(); i++ {
		valid := true
		for _, img := range inputs {
			if !img.Valid[i] {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		for j, name := range c.bands {
			features[name] = inputs[j].Pix[i]
		}
		class, err := c.tree.classify(features)
		if err != nil {
			return nil, err
		}
		classes.Pix[i] = float64(class)
		classes.Valid[i] = true
		cloud.Valid[i] = true
		if class == classCloud {
			cloud.Pix[i] = 1
		}
	}

	cloudDist := raster.DistanceTransform(cloud)

	ice := raster.New(w, h)
	for i := 0; i < ice.Len(); i++ {
		if !classes.Valid[i] || cloudDist.Pix[i] <= cloudBufferDistSq {
			continue
		}
		if classes.Pix[i] == classIce {
			ice.Pix[i] = 1
		}
		ice.Valid[i] = true
	}
	return ice, nil
}
