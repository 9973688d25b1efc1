package server

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// DimensionID identifies a dimension added to the server's configuration.
// IDs are dense: the dimension at position i of the configured list gets
// ID i, for the lifetime of the process.
type DimensionID uint16

// TypeName returns the registry name under which the dimension type is
// sent to clients.
func (id DimensionID) TypeName() string {
	return fmt.Sprintf("minecraft:dimension_type_%d", id)
}

// BiomeID identifies a biome added to the server's configuration. IDs are
// assigned the same way as DimensionIDs.
type BiomeID uint16

// Dimension describes a dimension type in the registry sent to joining
// clients.
type Dimension struct {
	Natural      bool
	AmbientLight float64
	// FixedTime pins the dimension's celestial time of day. Nil means the
	// normal day/night cycle.
	FixedTime *int64
	MinY      int32
	Height    int32
}

func (d *Dimension) element() dimensionElement {
	return dimensionElement{
		Natural:      d.Natural,
		AmbientLight: d.AmbientLight,
		FixedTime:    d.FixedTime,
		MinY:         d.MinY,
		Height:       d.Height,
	}
}

type dimensionElement struct {
	Natural      bool    `cbor:"natural"`
	AmbientLight float64 `cbor:"ambient_light"`
	FixedTime    *int64  `cbor:"fixed_time,omitempty"`
	MinY         int32   `cbor:"min_y"`
	Height       int32   `cbor:"height"`
}

// Biome describes a biome in the registry sent to joining clients.
type Biome struct {
	// Name is the biome's registry name, e.g. "minecraft:plains". Must be
	// unique and nonempty.
	Name          string
	Precipitation string
	Temperature   float64
	Downfall      float64
	SkyColor      int32
	WaterColor    int32
	FogColor      int32
}

func (b *Biome) element() biomeElement {
	return biomeElement{
		Precipitation: b.Precipitation,
		Temperature:   b.Temperature,
		Downfall:      b.Downfall,
		SkyColor:      b.SkyColor,
		WaterColor:    b.WaterColor,
		FogColor:      b.FogColor,
	}
}

type biomeElement struct {
	Precipitation string  `cbor:"precipitation"`
	Temperature   float64 `cbor:"temperature"`
	Downfall      float64 `cbor:"downfall"`
	SkyColor      int32   `cbor:"sky_color"`
	WaterColor    int32   `cbor:"water_color"`
	FogColor      int32   `cbor:"fog_color"`
}

// RegistryEntry is one element of a registry, addressed by its dense ID.
type RegistryEntry struct {
	Name string `cbor:"name"`
	ID   int32  `cbor:"id"`
	// Element is the entry's payload, encoded canonically at build time.
	Element []byte `cbor:"element"`
}

// Registry groups the entries of one registry type, in ID order.
type Registry struct {
	Type   string          `cbor:"type"`
	Values []RegistryEntry `cbor:"value"`
}

// RegistryCodec is the immutable description of dimensions, biomes and
// chat types sent to every joining client. Built once at startup; never
// mutated afterwards.
type RegistryCodec struct {
	DimensionTypes Registry `cbor:"minecraft:dimension_type"`
	Biomes         Registry `cbor:"minecraft:worldgen/biome"`
	ChatTypes      Registry `cbor:"minecraft:chat_type"`

	encoded []byte
}

// Encoded returns the canonical serialized form of the whole codec. The
// same configured dimension and biome lists always produce identical
// bytes.
func (c *RegistryCodec) Encoded() []byte {
	return c.encoded
}

// BuildRegistryCodec assembles the registry codec from the configured
// dimension and biome lists. Entry IDs equal each element's position in
// its list. Malformed entries are a startup error.
func BuildRegistryCodec(dimensions []Dimension, biomes []Biome) (*RegistryCodec, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}

	codec := &RegistryCodec{
		DimensionTypes: Registry{
			Type:   "minecraft:dimension_type",
			Values: make([]RegistryEntry, 0, len(dimensions)),
		},
		Biomes: Registry{
			Type:   "minecraft:worldgen/biome",
			Values: make([]RegistryEntry, 0, len(biomes)),
		},
		ChatTypes: Registry{
			Type:   "minecraft:chat_type",
			Values: []RegistryEntry{},
		},
	}

	for i, dim := range dimensions {
		if dim.Height <= 0 {
			return nil, fmt.Errorf("dimension %d: height must be positive, got %d", i, dim.Height)
		}

		element, err := enc.Marshal(dim.element())
		if err != nil {
			return nil, fmt.Errorf("dimension %d: %w", i, err)
		}

		codec.DimensionTypes.Values = append(codec.DimensionTypes.Values, RegistryEntry{
			Name:    DimensionID(i).TypeName(),
			ID:      int32(i),
			Element: element,
		})
	}

	for i, biome := range biomes {
		if biome.Name == "" {
			return nil, fmt.Errorf("biome %d: name must not be empty", i)
		}

		element, err := enc.Marshal(biome.element())
		if err != nil {
			return nil, fmt.Errorf("biome %q: %w", biome.Name, err)
		}

		codec.Biomes.Values = append(codec.Biomes.Values, RegistryEntry{
			Name:    biome.Name,
			ID:      int32(i),
			Element: element,
		})
	}

	encoded, err := enc.Marshal(codec)
	if err != nil {
		return nil, fmt.Errorf("could not encode registry codec: %w", err)
	}
	codec.encoded = encoded

	return codec, nil
}
