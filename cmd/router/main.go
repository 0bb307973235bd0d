package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"kuanb/gosm-matcher/config"
	"kuanb/gosm-matcher/geom"
	"kuanb/gosm-matcher/metrics"
	"kuanb/gosm-matcher/osm"
	"kuanb/gosm-matcher/roadnet"
	"kuanb/gosm-matcher/routing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twpayne/go-polyline"
)

// Server holds the graph and matcher for handling requests
type Server struct {
	network   *roadnet.Network
	matcher   *routing.Matcher
	transform geom.Transform
}

// randomColor generates a random hex color string
func randomColor() string {
	const letters = "0123456789ABCDEF"
	b := make([]byte, 7)
	b[0] = '#'
	for i := 1; i < 7; i++ {
		b[i] = letters[rand.Intn(16)]
	}
	return string(b)
}

type segmentJSON struct {
	Road      string    `json:"road"`
	Obs       int       `json:"obs"`
	ObsNE     int       `json:"obs_ne"`
	Timestamp time.Time `json:"timestamp"`
	Longitude float64   `json:"longitude"`
	Latitude  float64   `json:"latitude"`
	Length    float64   `json:"length"`
	RoadProp  float64   `json:"road_prop"`
}

// handleMatch processes a GeoJSON request and returns the matched path
func (s *Server) handleMatch(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to read request body")
		return
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid GeoJSON: "+err.Error())
		return
	}
	track, err := geom.TrackFromFeatureCollection(fc)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid track: "+err.Error())
		return
	}
	if len(track) == 0 {
		c.String(http.StatusBadRequest, "No coordinates found in GeoJSON")
		return
	}

	// requests are in the external datum, the graph in the local one
	obs := make([]routing.Observation, len(track))
	for i, tp := range track {
		lat, lon := s.transform.ToLocal(tp.Lat, tp.Lon)
		obs[i] = routing.Observation{Lon: lon, Lat: lat, Time: tp.Time}
	}
	log.Printf("Processing match request with %d coordinates", len(obs))

	start := time.Now()
	match, err := s.matcher.Match(c.Request.Context(), obs)
	if err != nil {
		metrics.ObserveMatch(metrics.Classify(err), time.Since(start), len(obs), 0)
		status := http.StatusInternalServerError
		if metrics.Classify(err) == metrics.ResultUnmatched {
			status = http.StatusUnprocessableEntity
		}
		c.String(status, err.Error())
		return
	}

	out, err := s.pathFeatures(match)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	segmentsRequested, _ := strconv.ParseBool(c.Query("segments"))
	var projectErr error
	if segmentsRequested {
		records, err := s.matcher.Project(match, obs)
		projectErr = err
		if err == nil {
			rows := make([]segmentJSON, len(records))
			for i, r := range records {
				lat, lon := s.transform.ToExternal(r.Lat, r.Lon)
				rows[i] = segmentJSON{
					Road:      r.Road.String(),
					Obs:       r.Obs,
					ObsNE:     r.ObsNE,
					Timestamp: r.Timestamp,
					Longitude: lon,
					Latitude:  lat,
					Length:    r.Length,
					RoadProp:  r.RoadProp,
				}
			}
			out.ExtraMembers["segments"] = rows
		} else {
			out.ExtraMembers["segments"] = nil
			out.ExtraMembers["segment_error"] = err.Error()
		}
	}
	metrics.ObserveMatch(metrics.Classify(projectErr), time.Since(start), len(obs), len(match.Skipped))

	data, err := out.MarshalJSON()
	if err != nil {
		log.Printf("Failed to encode response: %v", err)
		c.String(http.StatusInternalServerError, "Failed to encode response")
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// pathFeatures renders every matched edge as a LineString feature
func (s *Server) pathFeatures(match *routing.Match) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	var prev roadnet.EdgeID
	for i, st := range match.Sequence {
		if i > 0 && st.Edge.ID == prev {
			continue
		}
		prev = st.Edge.ID

		line := make(orb.LineString, len(st.Edge.Geometry))
		for j, p := range st.Edge.Geometry {
			lat, lon := s.transform.ToExternal(p[1], p[0])
			line[j] = orb.Point{lon, lat}
		}
		f := geojson.NewFeature(line)
		f.Properties["matched"] = true
		f.Properties["road"] = st.Edge.ID.String()
		f.Properties["highway"] = st.Edge.RoadClass
		f.Properties["stroke"] = randomColor()
		fc.Append(f)
	}

	nodes, err := s.matcher.Nodes(match)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(nodes))
	coords := make([][]float64, len(nodes))
	for i, n := range nodes {
		ids[i] = int64(n.ID)
		coords[i] = []float64{n.Lat, n.Lon}
	}

	fc.ExtraMembers = geojson.Properties{
		"confidence": match.Confidence,
		"nodes":      ids,
		"polyline":   string(polyline.EncodeCoords(coords)),
		"skipped":    match.Skipped,
	}
	return fc, nil
}

// handleNearest returns the graph node closest to lon/lat
func (s *Server) handleNearest(c *gin.Context) {
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	if errLon != nil || errLat != nil {
		c.String(http.StatusBadRequest, "lon and lat are required")
		return
	}

	localLat, localLon := s.transform.ToLocal(lat, lon)
	node, dist, ok := s.network.NearestNode(localLon, localLat)
	if !ok {
		c.String(http.StatusNotFound, "empty graph")
		return
	}
	nLat, nLon := s.transform.ToExternal(node.Lat, node.Lon)
	c.JSON(http.StatusOK, gin.H{
		"node":         node.ID,
		"longitude":    nLon,
		"latitude":     nLat,
		"street_count": node.StreetCount,
		"distance":     dist,
	})
}

func newRouter(s *Server, withCORS bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if withCORS {
		r.Use(cors.Default())
	}

	r.POST("/match", s.handleMatch)
	r.GET("/nearest", s.handleNearest)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Metrics endpoints
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/debug/runtime", func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Runtime())
	})
	return r
}

func loadConfig(path, pbf string) (*config.AppConfig, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if pbf != "" {
		cfg.Graph.PBF = pbf
	}
	return &cfg, config.Validate(&cfg)
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	pbfFile := flag.String("pbf", "", "PBF file, overrides graph.pbf from the config")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("gosm-matcher starting...")

	cfg, err := loadConfig(*configPath, *pbfFile)
	if err != nil {
		log.Fatal(err)
	}
	transform, err := geom.TransformFor(cfg.Graph.Datum)
	if err != nil {
		log.Fatal(err)
	}

	// Load graph at startup
	log.Printf("Loading graph from %s", cfg.Graph.PBF)
	ctx := context.Background()
	network, err := roadnet.Load(ctx, &osm.PBFLoader{
		Path:        cfg.Graph.PBF,
		RoadClasses: cfg.Graph.RoadClasses,
		Transform:   transform,
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Loaded graph: %d nodes, %d edges", network.NumNodes(), network.NumEdges())

	matcher, err := routing.NewMatcher(network, cfg.Matcher, routing.WithTransform(transform))
	if err != nil {
		log.Fatal(err)
	}

	server := &Server{
		network:   network,
		matcher:   matcher,
		transform: transform,
	}

	// Start background metrics logging (every 30 seconds)
	metrics.StartLogger(ctx, 30*time.Second)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Listening on %s", addr)
	if err := newRouter(server, cfg.Server.CORS).Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
