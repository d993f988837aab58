// Package osm reads road records from OpenStreetMap PBF extracts.
package osm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/qedus/osmpbf"
	"go.uber.org/zap"

	"kuanb/gosm-matcher/road"
)

// DefaultClasses are the highway classes kept when Options.Classes is empty.
var DefaultClasses = []string{
	"motorway",
	"motorway_link",
	"trunk",
	"trunk_link",
	"primary",
	"primary_link",
	"secondary",
	"secondary_link",
	"tertiary",
	"tertiary_link",
	"residential",
	"service",
	"living_street",
}

type Options struct {
	// Classes whitelists highway values; empty means DefaultClasses.
	Classes []string
	// Speeds supplies priority and default speed per class; nil means
	// DefaultSpeeds.
	Speeds SpeedTable
	// Workers is the number of decoding goroutines; 0 means GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

func (o Options) withDefaults() Options {
	if len(o.Classes) == 0 {
		o.Classes = DefaultClasses
	}
	if o.Speeds == nil {
		o.Speeds = DefaultSpeeds()
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(-1)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Load reads the PBF file at path into road records.
func Load(path string, opts Options) ([]road.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return records, nil
}

// Decode reads a PBF stream into road records, keeping whitelisted highways
// and splitting them at shared nodes.
func Decode(r io.Reader, opts Options) ([]road.Record, error) {
	opts = opts.withDefaults()
	logger := opts.Logger

	d := osmpbf.NewDecoder(r)

	// use more memory from the start, it is faster
	d.SetBufferSize(osmpbf.MaxBlobSize)

	if err := d.Start(opts.Workers); err != nil {
		return nil, fmt.Errorf("starting decoder: %w", err)
	}

	whitelist := make(map[string]struct{}, len(opts.Classes))
	for _, c := range opts.Classes {
		whitelist[c] = struct{}{}
	}

	var (
		nc, wc, rc uint64
		nodes      = make(map[NodeID]Node)
		ways       []*Way
	)
	for {
		v, err := d.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding: %w", err)
		}

		switch v := v.(type) {
		case *osmpbf.Node:
			nodes[NodeID(v.ID)] = Node{ID: NodeID(v.ID), Lat: v.Lat, Lon: v.Lon}
			nc++
		case *osmpbf.Way:
			wc++
			if _, ok := whitelist[v.Tags["highway"]]; !ok {
				continue
			}
			ids := make([]NodeID, len(v.NodeIDs))
			for i, id := range v.NodeIDs {
				ids[i] = NodeID(id)
			}
			ways = append(ways, &Way{ID: WayID(v.ID), Nodes: ids, Tags: Tags(v.Tags)})
		case *osmpbf.Relation:
			// relations carry no road geometry
			rc++
		default:
			return nil, fmt.Errorf("unknown type %T", v)
		}
	}
	logger.Info("decoded pbf",
		zap.Uint64("nodes", nc), zap.Uint64("ways", wc), zap.Uint64("relations", rc))

	net := &network{nodes: nodes, ways: ways}
	net.dropUnused()
	logger.Info("filtered highways",
		zap.Int("kept_ways", len(ways)), zap.Uint64("dropped_ways", wc-uint64(len(ways))),
		zap.Int("kept_nodes", len(net.nodes)))

	records := net.records(opts.Speeds)
	logger.Info("split ways into roads", zap.Int("roads", len(records)))
	return records, nil
}

// dropUnused removes nodes not referenced by any way.
func (n *network) dropUnused() {
	used := make(map[NodeID]Node)
	for _, w := range n.ways {
		for _, id := range w.Nodes {
			if node, ok := n.nodes[id]; ok {
				used[id] = node
			}
		}
	}
	n.nodes = used
}
