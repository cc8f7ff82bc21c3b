package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// chunkShift converts block coordinates to chunk coordinates (16 blocks per chunk)
const chunkShift = 4

const (
	// MaxCoordinate bounds every block coordinate of a box
	MaxCoordinate = 1 << 30

	// MaxClaimChunks bounds the number of chunks one claim may cover
	MaxClaimChunks = 1 << 16

	// MaxChunkRadius bounds the radius of a chunk neighbourhood search
	MaxChunkRadius = 64
)

// ErrBoxTooLarge is returned for a box covering more than MaxClaimChunks chunks
var ErrBoxTooLarge = fmt.Errorf("box covers more than %d chunks", MaxClaimChunks)

// ChunkKey packs chunk coordinates into the 64-bit key used by the spatial index.
// The low 32 bits hold x and the high 32 bits hold z, both as two's complement.
func ChunkKey(x, z int32) int64 {
	return int64(uint64(uint32(x)) | uint64(uint32(z))<<32)
}

// UnpackChunkKey reverses ChunkKey
func UnpackChunkKey(key int64) (x, z int32) {
	return int32(uint32(uint64(key))), int32(uint32(uint64(key) >> 32))
}

// ChunkCoord returns the chunk coordinate containing the block coordinate v
func ChunkCoord(v float64) int32 {
	return int32(math.Floor(v)) >> chunkShift
}

// ChunkKeyAt returns the key of the chunk containing the block position (x, z)
func ChunkKeyAt(x, z float64) int64 {
	return ChunkKey(ChunkCoord(x), ChunkCoord(z))
}

// ChunkKeysAround returns the keys of every chunk within radius chunks of the
// chunk containing (x, z), including that chunk. The radius is clamped to
// [0, MaxChunkRadius].
func ChunkKeysAround(x, z float64, radius int32) []int64 {
	radius = max(0, min(radius, MaxChunkRadius))
	cx, cz := ChunkCoord(x), ChunkCoord(z)
	keys := make([]int64, 0, (2*radius+1)*(2*radius+1))
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			keys = append(keys, ChunkKey(cx+dx, cz+dz))
		}
	}
	return keys
}

// BoundingBox is an axis-aligned box given by two corners per axis.
// The corners may be in any order.
type BoundingBox struct {
	X1 float64 `json:"x1" yaml:"x1"`
	X2 float64 `json:"x2" yaml:"x2"`
	Y1 float64 `json:"y1" yaml:"y1"`
	Y2 float64 `json:"y2" yaml:"y2"`
	Z1 float64 `json:"z1" yaml:"z1"`
	Z2 float64 `json:"z2" yaml:"z2"`
}

// NewBoundingBox creates a box from two opposite corners
func NewBoundingBox(x1, y1, z1, x2, y2, z2 float64) BoundingBox {
	return BoundingBox{X1: x1, X2: x2, Y1: y1, Y2: y2, Z1: z1, Z2: z2}
}

// Min returns the lowest corner
func (b BoundingBox) Min() (x, y, z float64) {
	return math.Min(b.X1, b.X2), math.Min(b.Y1, b.Y2), math.Min(b.Z1, b.Z2)
}

// Max returns the highest corner
func (b BoundingBox) Max() (x, y, z float64) {
	return math.Max(b.X1, b.X2), math.Max(b.Y1, b.Y2), math.Max(b.Z1, b.Z2)
}

// Contains reports whether the block position lies inside the box (inclusive)
func (b BoundingBox) Contains(x, y, z float64) bool {
	minX, minY, minZ := b.Min()
	maxX, maxY, maxZ := b.Max()
	return x >= minX && x <= maxX && y >= minY && y <= maxY && z >= minZ && z <= maxZ
}

// Intersects reports whether two boxes share at least one block
func (b BoundingBox) Intersects(o BoundingBox) bool {
	aMinX, aMinY, aMinZ := b.Min()
	aMaxX, aMaxY, aMaxZ := b.Max()
	bMinX, bMinY, bMinZ := o.Min()
	bMaxX, bMaxY, bMaxZ := o.Max()
	return aMinX <= bMaxX && bMinX <= aMaxX &&
		aMinY <= bMaxY && bMinY <= aMaxY &&
		aMinZ <= bMaxZ && bMinZ <= aMaxZ
}

// Validate checks that every coordinate is finite and within MaxCoordinate
// and that the box covers at most MaxClaimChunks chunks
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.X1, b.X2, b.Y1, b.Y2, b.Z1, b.Z2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("box coordinate is not a finite number")
		}
		if math.Abs(v) > MaxCoordinate {
			return fmt.Errorf("box coordinate %v is beyond %d", v, MaxCoordinate)
		}
	}
	if b.ChunkCount() > MaxClaimChunks {
		return ErrBoxTooLarge
	}
	return nil
}

// ChunkCount returns how many chunks the box overlaps, without allocating
func (b BoundingBox) ChunkCount() int64 {
	cx1, cz1, cx2, cz2 := b.chunkBounds()
	return (int64(cx2) - int64(cx1) + 1) * (int64(cz2) - int64(cz1) + 1)
}

func (b BoundingBox) chunkBounds() (cx1, cz1, cx2, cz2 int32) {
	minX, _, minZ := b.Min()
	maxX, _, maxZ := b.Max()
	return ChunkCoord(minX), ChunkCoord(minZ), ChunkCoord(maxX), ChunkCoord(maxZ)
}

// ChunkKeys returns the sorted keys of every chunk the box overlaps.
// Height does not affect chunk membership. A box that fails Validate has no
// chunk keys.
func (b BoundingBox) ChunkKeys() []int64 {
	if b.Validate() != nil {
		return []int64{}
	}
	cx1, cz1, cx2, cz2 := b.chunkBounds()

	keys := make([]int64, 0, b.ChunkCount())
	for x := cx1; x <= cx2; x++ {
		for z := cz1; z <= cz2; z++ {
			keys = append(keys, ChunkKey(x, z))
		}
	}
	return SortChunkKeys(keys)
}

// SortChunkKeys sorts keys in place, drops duplicates and returns the result
func SortChunkKeys(keys []int64) []int64 {
	if len(keys) == 0 {
		return []int64{}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := keys[:1]
	for _, k := range keys[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}
