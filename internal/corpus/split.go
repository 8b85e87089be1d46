package corpus

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets that keep
// each label's share. Every class contributes round(testFraction*n) rows to
// test. The result depends only on labels, testFraction and seed.
func StratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int, err error) {
	if len(labels) < 2 {
		return nil, nil, fmt.Errorf("need at least 2 records to split, got %d", len(labels))
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}

	byClass := make(map[int][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	quota := make(map[int]int, len(classes))
	total := 0
	for _, c := range classes {
		quota[c] = int(math.Round(testFraction * float64(len(byClass[c]))))
		total += quota[c]
	}
	// Keep both partitions non-empty by moving one row from or to the
	// largest class.
	largest := classes[0]
	for _, c := range classes {
		if len(byClass[c]) > len(byClass[largest]) {
			largest = c
		}
	}
	if total == 0 {
		quota[largest]++
	} else if total == len(labels) {
		quota[largest]--
	}

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		rows := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		test = append(test, rows[:quota[c]]...)
		train = append(train, rows[quota[c]:]...)
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })

	return train, test, nil
}
