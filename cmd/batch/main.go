package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"kuanb/gosm-matcher/batch"
	"kuanb/gosm-matcher/config"
	"kuanb/gosm-matcher/export"
	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/metrics"
	"kuanb/gosm-matcher/osm"
	"kuanb/gosm-matcher/roadnet"
	"kuanb/gosm-matcher/routing"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	pbfFile := flag.String("pbf", "", "PBF file, overrides graph.pbf from the config")
	out := flag.String("out", "", "SQLite output, overrides batch.output from the config")
	workers := flag.Int("workers", 0, "concurrent trajectories, overrides batch.workers")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if flag.NArg() == 0 {
		log.Fatal("usage: batch [-config file] [-pbf file] [-out file] trajectories.csv...")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = *loaded
	}
	if *pbfFile != "" {
		cfg.Graph.PBF = *pbfFile
	}
	if *out != "" {
		cfg.Batch.Output = *out
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if err := config.Validate(&cfg); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	transform, err := geom.TransformFor(cfg.Graph.Datum)
	if err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	network, err := roadnet.Load(ctx, &osm.PBFLoader{
		Path:        cfg.Graph.PBF,
		RoadClasses: cfg.Graph.RoadClasses,
		Transform:   transform,
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Loaded graph: %d nodes, %d edges in %v", network.NumNodes(), network.NumEdges(), time.Since(start))

	matcher, err := routing.NewMatcher(network, cfg.Matcher, routing.WithTransform(transform))
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Batch.Output), 0o755); err != nil {
		log.Fatal(err)
	}
	sink, err := export.OpenSQLite(cfg.Batch.Output)
	if err != nil {
		log.Fatal(err)
	}
	defer sink.Close()

	src := batch.NewFileSource(flag.Args()...)
	defer src.Close()

	metrics.StartLogger(ctx, 30*time.Second)

	pipeline := batch.NewPipeline(matcher, sink, network.EdgeTable(), batch.Options{
		Workers:       cfg.Batch.Workers,
		PartitionSize: cfg.Batch.PartitionSize,
	})
	log.Printf("Starting run %s with %d workers", pipeline.RunID(), cfg.Batch.Workers)

	stats, err := pipeline.Run(ctx, src)
	if err != nil {
		log.Printf("Run %s failed after %d trajectories: %v", pipeline.RunID(), stats.Read, err)
		os.Exit(1)
	}

	trips, infos, roads, err := sink.Counts(ctx)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Done in %v: %s holds %d trip rows, %d trips, %d roads",
		time.Since(start), cfg.Batch.Output, trips, infos, roads)
}
