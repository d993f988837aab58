package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"kuanb/gosm-matcher/config"
	"kuanb/gosm-matcher/osm"
	"kuanb/gosm-matcher/road"
	"kuanb/gosm-matcher/routing"
	"kuanb/gosm-matcher/spatial"
)

// loadGraph builds the road graph from the GeoJSON file if one is
// configured, and from the PBF file otherwise.
func loadGraph(cfg *config.Config, logger *zap.Logger) (*road.Graph, error) {
	var (
		records []road.Record
		err     error
	)
	if cfg.Graph.GeoJSON != "" {
		logger.Info("loading graph", zap.String("geojson", cfg.Graph.GeoJSON))
		data, rerr := os.ReadFile(cfg.Graph.GeoJSON)
		if rerr != nil {
			return nil, fmt.Errorf("reading roads: %w", rerr)
		}
		records, err = road.DecodeGeoJSON(data)
	} else {
		logger.Info("loading graph", zap.String("pbf", cfg.Graph.PBF))
		records, err = osm.Load(cfg.Graph.PBF, osm.Options{
			Classes: cfg.Graph.Classes,
			Logger:  logger.Named("osm"),
		})
	}
	if err != nil {
		return nil, err
	}

	b := road.NewBuilder(cfg.Graph.Op())
	if err := b.Add(records...); err != nil {
		return nil, err
	}
	return b.Build(road.BuildOptions{
		Index:    spatial.Kind(cfg.Graph.Index),
		Capacity: cfg.Graph.Capacity,
		Logger:   logger.Named("graph"),
	})
}

func newMatcher(cfg *config.Config, logger *zap.Logger) (*routing.Matcher, error) {
	cost, err := road.CostByName(cfg.Matcher.Cost)
	if err != nil {
		return nil, err
	}
	graph, err := loadGraph(cfg, logger)
	if err != nil {
		return nil, err
	}
	return routing.NewMatcher(graph, routing.NewDijkstra(graph), cost, cfg.Graph.Op(), cfg.Matcher.Routing(), logger.Named("matcher")), nil
}
