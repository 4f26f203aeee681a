package block

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Generator отдаёт исходный тип блока для позиции, в которую ещё никто
// ничего не ставил и где ничего не ломал.
type Generator interface {
	BlockAt(world string, x, y, z int32) int32
}

// TerrainGenerator строит рельеф по карте высот из шума Перлина.
// Все миры используют один и тот же рельеф.
type TerrainGenerator struct {
	noise      *perlin.Perlin
	scale      float64 // Чем меньше, тем более плавный рельеф
	baseHeight int32
	amplitude  int32
}

// NewTerrainGenerator создает генератор рельефа для заданного сида.
func NewTerrainGenerator(seed int64) *TerrainGenerator {
	// alpha, beta и n как в карте шума биомов: 2.0, 2.0, 3 октавы
	return &TerrainGenerator{
		noise:      perlin.NewPerlin(2.0, 2.0, 3, seed),
		scale:      0.02,
		baseHeight: 64,
		amplitude:  12,
	}
}

// SurfaceHeight возвращает высоту верхнего твердого блока в колонке (x, z).
func (g *TerrainGenerator) SurfaceHeight(x, z int32) int32 {
	n := g.noise.Noise2D(float64(x)*g.scale, float64(z)*g.scale)
	return g.baseHeight + int32(math.Round(n*float64(g.amplitude)))
}

// BlockAt implements Generator.
func (g *TerrainGenerator) BlockAt(_ string, x, y, z int32) int32 {
	return layer(y, g.SurfaceHeight(x, z))
}

// FlatGenerator is a flat world with the surface at Height.
type FlatGenerator struct {
	Height int32
}

// BlockAt implements Generator.
func (g FlatGenerator) BlockAt(_ string, _, y, _ int32) int32 {
	return layer(y, g.Height)
}

func layer(y, surface int32) int32 {
	switch {
	case y > surface:
		return TypeAir
	case y == surface:
		return TypeGrass
	case y >= surface-3:
		return TypeDirt
	default:
		return TypeStone
	}
}
