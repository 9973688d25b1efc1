package config

import (
	"fmt"

	"github.com/lodestone-mc/lodestone/pkg/server"
)

type DimensionSettings struct {
	Natural      bool
	AmbientLight float64
	FixedTime    *int64
	MinY         int32
	Height       int32
}

type BiomeSettings struct {
	Name          string
	Precipitation string
	Temperature   float64
	Downfall      float64
	SkyColor      int32
	WaterColor    int32
	FogColor      int32
}

type ServerSettings struct {
	Address              string
	TickRate             int
	ConnectionMode       string
	CompressionThreshold *int
	MaxConnections       int
	IncomingCapacity     int
	OutgoingCapacity     int
	HandoffCapacity      int
	Dimensions           []DimensionSettings
	Biomes               []BiomeSettings
}

type Config struct {
	Server ServerSettings
}

// ServerConfig translates the file configuration into the runtime
// configuration consumed by server.Run. The accept loop and base context
// are wired by the caller.
func (c *Config) ServerConfig() (server.Config, error) {
	var mode server.ConnectionMode
	switch c.Server.ConnectionMode {
	case "offline":
		mode = server.ConnectionModeOffline
	case "online":
		mode = server.ConnectionModeOnline
	case "proxy":
		mode = server.ConnectionModeProxy
	default:
		return server.Config{}, fmt.Errorf(
			"unknown connection mode %q",
			c.Server.ConnectionMode,
		)
	}

	dimensions := make([]server.Dimension, 0, len(c.Server.Dimensions))
	for _, dim := range c.Server.Dimensions {
		dimensions = append(dimensions, server.Dimension{
			Natural:      dim.Natural,
			AmbientLight: dim.AmbientLight,
			FixedTime:    dim.FixedTime,
			MinY:         dim.MinY,
			Height:       dim.Height,
		})
	}

	biomes := make([]server.Biome, 0, len(c.Server.Biomes))
	for _, biome := range c.Server.Biomes {
		biomes = append(biomes, server.Biome{
			Name:          biome.Name,
			Precipitation: biome.Precipitation,
			Temperature:   biome.Temperature,
			Downfall:      biome.Downfall,
			SkyColor:      biome.SkyColor,
			WaterColor:    biome.WaterColor,
			FogColor:      biome.FogColor,
		})
	}

	return server.Config{
		Address:              c.Server.Address,
		TickRate:             c.Server.TickRate,
		ConnectionMode:       mode,
		CompressionThreshold: c.Server.CompressionThreshold,
		MaxConnections:       c.Server.MaxConnections,
		IncomingCapacity:     c.Server.IncomingCapacity,
		OutgoingCapacity:     c.Server.OutgoingCapacity,
		HandoffCapacity:      c.Server.HandoffCapacity,
		Dimensions:           dimensions,
		Biomes:               biomes,
	}, nil
}
