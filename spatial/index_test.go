package spatial

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuanb/gosm-matcher/geom"
)

type boxed struct {
	id    int
	bound orb.Bound
}

func randomBoxes(n int, seed int64) []boxed {
	rng := rand.New(rand.NewSource(seed))
	boxes := make([]boxed, n)
	for i := range boxes {
		x, y := rng.Float64()*1000, rng.Float64()*1000
		w, h := rng.Float64()*20, rng.Float64()*20
		boxes[i] = boxed{id: i, bound: orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x + w, y + h}}}
	}
	return boxes
}

func bruteForce(boxes []boxed, query orb.Bound) []int {
	var ids []int
	for _, b := range boxes {
		if b.bound.Intersects(query) {
			ids = append(ids, b.id)
		}
	}
	sort.Ints(ids)
	return ids
}

func sorted(ids []int) []int {
	out := append([]int(nil), ids...)
	sort.Ints(out)
	return out
}

func TestQueryMatchesBruteForce(t *testing.T) {
	boxes := randomBoxes(1000, 7)
	rng := rand.New(rand.NewSource(11))

	queries := make([]orb.Bound, 50)
	for i := range queries {
		x, y := rng.Float64()*1000, rng.Float64()*1000
		s := rng.Float64() * 150
		queries[i] = orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x + s, y + s}}
	}
	queries = append(queries, orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{2000, 2000}})

	indexes := map[string]Index[int]{
		"str capacity 4":  NewSTRTree[int](4),
		"str capacity 10": NewSTRTree[int](10),
		"str capacity 50": NewSTRTree[int](50),
		"rtree":           NewRTree[int](),
	}

	for name, index := range indexes {
		t.Run(name, func(t *testing.T) {
			for _, b := range boxes {
				require.NoError(t, index.Insert(b.bound, b.id))
			}
			assert.Equal(t, len(boxes), index.Len())

			for _, q := range queries {
				assert.Equal(t, bruteForce(boxes, q), sorted(index.Query(q)))
			}
		})
	}
}

func TestSTRTreeInsertAfterBuild(t *testing.T) {
	tree := NewSTRTree[string](4)
	require.NoError(t, tree.Insert(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, "a"))

	assert.Equal(t, []string{"a"}, tree.Query(orb.Bound{Min: orb.Point{0.5, 0.5}, Max: orb.Point{2, 2}}))
	assert.ErrorIs(t, tree.Insert(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, "b"), ErrIndexBuilt)
	assert.Equal(t, 1, tree.Len())
}

func TestSTRTreeEmpty(t *testing.T) {
	tree := NewSTRTree[int](0)
	assert.Empty(t, tree.Query(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}))
	assert.Equal(t, 0, tree.Len())
}

func TestSTRTreeIgnoresInvertedBounds(t *testing.T) {
	tree := NewSTRTree[int](4)
	require.NoError(t, tree.Insert(orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{0, 0}}, 1))
	assert.Equal(t, 0, tree.Len())
}

func TestNewIndexKind(t *testing.T) {
	index, err := New[int](KindRTree, 0)
	require.NoError(t, err)
	assert.IsType(t, &RTree[int]{}, index)

	index, err = New[int]("", 0)
	require.NoError(t, err)
	assert.IsType(t, &STRTree[int]{}, index)

	_, err = New[int]("quadtree", 0)
	assert.Error(t, err)
}

func TestGeometryIndexRadius(t *testing.T) {
	lines := map[string]orb.LineString{
		"near":  {{0, 1}, {10, 1}},
		"mid":   {{0, 3}, {10, 3}},
		"far":   {{0, 6}, {10, 6}},
		"other": {{50, 50}, {60, 60}},
	}
	index := NewGeometryIndex[string](NewSTRTree[string](4), geom.Cartesian{}, func(id string) orb.LineString { return lines[id] })
	require.NoError(t, index.Add("near", "mid", "far", "other"))

	hits := index.Radius(orb.Point{5, 0}, 5, -1)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Item)
	assert.Equal(t, "mid", hits[1].Item)
	assert.InDelta(t, 1, hits[0].Distance, 1e-9)
	assert.InDelta(t, 0.5, hits[0].Fraction, 1e-9)
	assert.InDelta(t, 5, hits[0].Point[0], 1e-9)

	hits = index.Radius(orb.Point{5, 0}, 10, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Item)
	assert.Equal(t, "mid", hits[1].Item)

	assert.Len(t, index.Search(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}), 4)
}
