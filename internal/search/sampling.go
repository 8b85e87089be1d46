package search

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/fakenews-detector/backend/internal/model"
)

// Grid expands a space into every configuration. Parameter names are taken
// in sorted order and the last name varies fastest.
func Grid(space Space) []model.Params {
	names := make([]string, 0, len(space))
	for name := range space {
		names = append(names, name)
	}
	sort.Strings(names)

	grid := []model.Params{{}}
	for _, name := range names {
		var next []model.Params
		for _, partial := range grid {
			for _, v := range space[name] {
				p := make(model.Params, len(partial)+1)
				for k, pv := range partial {
					p[k] = pv
				}
				p[name] = v
				next = append(next, p)
			}
		}
		grid = next
	}
	return grid
}

// SampleParams draws n distinct configurations from the grid without
// replacement. The draw depends only on space, n and seed.
func SampleParams(space Space, n int, seed int64) []model.Params {
	grid := Grid(space)
	if n > len(grid) {
		n = len(grid)
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(grid))

	out := make([]model.Params, n)
	for i := 0; i < n; i++ {
		out[i] = grid[perm[i]]
	}
	return out
}

// Fold is one cross-validation split of row indices.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold partitions rows into k folds that each keep the label
// proportions. Each class's rows are cut, in order, into k contiguous chunks
// whose sizes differ by at most one.
func StratifiedKFold(y []int, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("number of folds must be at least 2, got %d", k)
	}
	if k > len(y) {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", len(y), k)
	}

	byClass := make(map[int][]int)
	var classes []int
	for i, label := range y {
		if _, ok := byClass[label]; !ok {
			classes = append(classes, label)
		}
		byClass[label] = append(byClass[label], i)
	}
	sort.Ints(classes)

	foldOf := make([]int, len(y))
	for _, c := range classes {
		rows := byClass[c]
		size, rem := len(rows)/k, len(rows)%k
		start := 0
		for f := 0; f < k; f++ {
			n := size
			if f < rem {
				n++
			}
			for _, r := range rows[start : start+n] {
				foldOf[r] = f
			}
			start += n
		}
	}

	folds := make([]Fold, k)
	for i, f := range foldOf {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, i)
			} else {
				folds[g].Train = append(folds[g].Train, i)
			}
		}
	}
	return folds, nil
}
