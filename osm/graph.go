package osm

import (
	"sort"

	"github.com/paulmach/orb"

	"kuanb/gosm-matcher/road"
)

type NodeID int64

type WayID int64

type Node struct {
	ID  NodeID
	Lat float64
	Lon float64
}

// Way is a highway as read from the file, before splitting into roads.
type Way struct {
	ID    WayID
	Nodes []NodeID
	Tags  Tags
}

// network holds the filtered ways and the nodes they reference.
type network struct {
	nodes map[NodeID]Node
	ways  []*Way
}

// vertices returns the nodes that become road endpoints: way ends and
// nodes shared by more than one way (or visited twice by the same way).
func (n *network) vertices() map[NodeID]struct{} {
	count := make(map[NodeID]int)
	out := make(map[NodeID]struct{})
	for _, w := range n.ways {
		for i, id := range w.Nodes {
			count[id]++
			if i == 0 || i == len(w.Nodes)-1 {
				out[id] = struct{}{}
			}
		}
	}
	for id, c := range count {
		if c > 1 {
			out[id] = struct{}{}
		}
	}
	return out
}

// records splits every way at vertices into road records. Ways are
// processed in id order so record ids are stable between runs.
func (n *network) records(speeds SpeedTable) []road.Record {
	sort.Slice(n.ways, func(i, j int) bool { return n.ways[i].ID < n.ways[j].ID })
	vertices := n.vertices()

	var (
		out []road.Record
		id  int64
	)
	for _, w := range n.ways {
		class := w.Tags.Highway()
		defaults := speeds.Lookup(class)
		forward, backward := w.Tags.MaxSpeed(defaults.Speed)
		oneway, reverse := w.Tags.OneWay()

		nodes := w.Nodes
		if reverse {
			nodes = reversedNodes(nodes)
			forward, backward = backward, forward
		}

		start := 0
		for i := 1; i < len(nodes); i++ {
			if _, ok := vertices[nodes[i]]; !ok && i < len(nodes)-1 {
				continue
			}
			line := n.line(nodes[start : i+1])
			if len(line) >= 2 {
				out = append(out, road.Record{
					ID:               id,
					Source:           int64(nodes[start]),
					Target:           int64(nodes[i]),
					OneWay:           oneway,
					Class:            class,
					Priority:         defaults.Priority,
					MaxSpeedForward:  forward,
					MaxSpeedBackward: backward,
					Geometry:         line,
				})
				id++
			}
			start = i
		}
	}
	return out
}

// line creates a LineString from node ids, skipping nodes missing from the
// file (clipped extracts reference nodes outside the extract).
func (n *network) line(ids []NodeID) orb.LineString {
	line := make(orb.LineString, 0, len(ids))
	for _, id := range ids {
		if node, ok := n.nodes[id]; ok {
			line = append(line, orb.Point{node.Lon, node.Lat})
		}
	}
	return line
}

func reversedNodes(ids []NodeID) []NodeID {
	out := make([]NodeID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
