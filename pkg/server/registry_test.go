package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDimensions() []Dimension {
	fixed := int64(6000)
	return []Dimension{
		{Natural: true, AmbientLight: 0, MinY: -64, Height: 384},
		{Natural: false, AmbientLight: 0.1, FixedTime: &fixed, MinY: 0, Height: 256},
	}
}

func testBiomes() []Biome {
	return []Biome{
		{Name: "minecraft:plains", Precipitation: "rain", Temperature: 0.8, Downfall: 0.4},
		{Name: "minecraft:desert", Precipitation: "none", Temperature: 2.0},
		{Name: "minecraft:snowy_taiga", Precipitation: "snow", Temperature: -0.5},
	}
}

func TestRegistryCodecIDs(t *testing.T) {
	codec, err := BuildRegistryCodec(testDimensions(), testBiomes())
	require.NoError(t, err)

	require.Len(t, codec.DimensionTypes.Values, 2)
	for i, entry := range codec.DimensionTypes.Values {
		require.Equal(t, int32(i), entry.ID)
		require.Equal(t, fmt.Sprintf("minecraft:dimension_type_%d", i), entry.Name)
		require.NotEmpty(t, entry.Element)
	}

	require.Len(t, codec.Biomes.Values, 3)
	for i, entry := range codec.Biomes.Values {
		require.Equal(t, int32(i), entry.ID)
		require.Equal(t, testBiomes()[i].Name, entry.Name)
	}

	// The chat type registry exists but is empty.
	require.Equal(t, "minecraft:chat_type", codec.ChatTypes.Type)
	require.Empty(t, codec.ChatTypes.Values)
}

func TestRegistryCodecDeterministic(t *testing.T) {
	first, err := BuildRegistryCodec(testDimensions(), testBiomes())
	require.NoError(t, err)

	second, err := BuildRegistryCodec(testDimensions(), testBiomes())
	require.NoError(t, err)

	require.Equal(t, first.Encoded(), second.Encoded())
	require.NotEmpty(t, first.Encoded())

	for i := range first.Biomes.Values {
		require.Equal(
			t,
			first.Biomes.Values[i].Element,
			second.Biomes.Values[i].Element,
		)
	}
}

func TestRegistryCodecValidation(t *testing.T) {
	_, err := BuildRegistryCodec(nil, []Biome{{Name: ""}})
	require.Error(t, err)

	_, err = BuildRegistryCodec([]Dimension{{Height: 0}}, nil)
	require.Error(t, err)
}

func TestRegistryCodecEmptyLists(t *testing.T) {
	codec, err := BuildRegistryCodec(nil, nil)
	require.NoError(t, err)
	require.Empty(t, codec.DimensionTypes.Values)
	require.Empty(t, codec.Biomes.Values)
}
