package config

import "kuanb/gosm-matcher/routing"

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int  `yaml:"port" validate:"gt=0,lte=65535"`
	CORS bool `yaml:"cors"`
}

// GraphConfig describes where the road network comes from
type GraphConfig struct {
	PBF         string   `yaml:"pbf" validate:"required"`
	Datum       string   `yaml:"datum" validate:"oneof=wgs84 gcj02"`
	RoadClasses []string `yaml:"road_classes"`
}

// BatchConfig contains batch pipeline settings
type BatchConfig struct {
	Workers       int    `yaml:"workers" validate:"gt=0"`
	PartitionSize int    `yaml:"partition_size" validate:"gt=0"`
	Output        string `yaml:"output" validate:"required"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server  ServerConfig   `yaml:"server"`
	Graph   GraphConfig    `yaml:"graph"`
	Matcher routing.Config `yaml:"matcher"`
	Batch   BatchConfig    `yaml:"batch"`
}
