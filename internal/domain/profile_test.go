package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerOfConcern(t *testing.T) {
	t.Run("no layer flagged", func(t *testing.T) {
		p := &SnowProfile{Layers: []*Layer{{}, {}, {}}}
		assert.Nil(t, p.LayerOfConcern())
		assert.Empty(t, p.LayersOfConcern())
	})

	t.Run("single flagged layer", func(t *testing.T) {
		flagged := &Layer{DepthTop: NewQuantity(66, "cm"), LayerOfConcern: true}
		p := &SnowProfile{Layers: []*Layer{{}, flagged, {}}}

		require.NotNil(t, p.LayerOfConcern())
		assert.Same(t, flagged, p.LayerOfConcern())

		all := p.LayersOfConcern()
		require.Len(t, all, 1)
		assert.Same(t, flagged, all[0])
	})

	t.Run("last flagged layer wins", func(t *testing.T) {
		first := &Layer{DepthTop: NewQuantity(10, "cm"), LayerOfConcern: true}
		second := &Layer{DepthTop: NewQuantity(66, "cm"), LayerOfConcern: true}
		p := &SnowProfile{Layers: []*Layer{first, {}, second, {}}}

		assert.Same(t, second, p.LayerOfConcern())

		all := p.LayersOfConcern()
		require.Len(t, all, 2)
		assert.Same(t, first, all[0])
		assert.Same(t, second, all[1])
	})

	t.Run("flagged layer keeps its position in the stratigraphy", func(t *testing.T) {
		layers := make([]*Layer, 11)
		for i := range layers {
			layers[i] = &Layer{DepthTop: NewQuantity(float64(i*11), "cm")}
		}
		layers[6].LayerOfConcern = true
		p := &SnowProfile{Layers: layers}

		// The concern accessor returns the same object that sits at
		// index 6, not a copy.
		assert.Same(t, layers[6], p.LayerOfConcern())
		assert.Equal(t, "66 cm", p.LayerOfConcern().DepthTop.String())
	})
}
