package road

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/spatial"
)

// BuildOptions selects the spatial index backing a Graph.
type BuildOptions struct {
	Index    spatial.Kind
	Capacity int
	Logger   *zap.Logger
}

// Builder collects road records and freezes them into a Graph.
type Builder struct {
	op      geom.Operator
	records map[int64]*Record
}

func NewBuilder(op geom.Operator) *Builder {
	return &Builder{op: op, records: make(map[int64]*Record)}
}

// Add stores records; a later record replaces an earlier one with the same
// id.
func (b *Builder) Add(records ...Record) error {
	for i := range records {
		r := records[i]
		if err := r.validate(); err != nil {
			return err
		}
		if r.Length <= 0 {
			r.Length = b.op.Length(r.Geometry)
		}
		b.records[r.ID] = &r
	}
	return nil
}

func (b *Builder) Build(opts BuildOptions) (*Graph, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	idx, err := spatial.New[*Record](opts.Index, opts.Capacity)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		op:    b.op,
		byID:  make(map[int64]*Segment, 2*len(b.records)),
		out:   make(map[int64][]int),
		in:    make(map[int64][]int),
		index: spatial.NewGeometryIndex(idx, b.op, func(r *Record) orb.LineString { return r.Geometry }),
	}

	ids := make([]int64, 0, len(b.records))
	for id := range b.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		r := b.records[id]
		g.add(newSegment(r, Forward))
		if !r.OneWay {
			g.add(newSegment(r, Backward))
		}
		if err := g.index.Add(r); err != nil {
			return nil, fmt.Errorf("indexing road %d: %w", r.ID, err)
		}
	}

	logger.Info("road graph built",
		zap.Int("roads", len(ids)),
		zap.Int("segments", g.Len()),
		zap.Int("vertices", g.VertexCount()),
		zap.String("index", string(opts.Index)),
	)
	return g, nil
}

func (g *Graph) add(s *Segment) {
	s.index = len(g.segments)
	g.segments = append(g.segments, s)
	g.byID[s.ID] = s
	g.out[s.Source] = append(g.out[s.Source], s.index)
	g.in[s.Target] = append(g.in[s.Target], s.index)
}
