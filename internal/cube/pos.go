// Package cube holds the block position type shared by the world, the plugin
// host and plugins.
package cube

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

// Pos identifies a block: the world it lives in plus its integer coordinates.
// Pos is comparable and is used directly as a map key.
type Pos struct {
	World string `json:"world"`
	X     int32  `json:"x"`
	Y     int32  `json:"y"`
	Z     int32  `json:"z"`
}

// ErrInvalidPos is returned by ParsePos for malformed input.
var ErrInvalidPos = errors.New("invalid block position")

// String formats the position as world(x, y, z).
func (p Pos) String() string {
	return fmt.Sprintf("%s(%d, %d, %d)", p.World, p.X, p.Y, p.Z)
}

// Add returns p shifted by the given deltas, in the same world.
func (p Pos) Add(dx, dy, dz int32) Pos {
	return Pos{World: p.World, X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// ParsePos parses the admin notation world:x:y:z.
func ParsePos(s string) (Pos, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] == "" {
		return Pos{}, fmt.Errorf("%w: %q, expected world:x:y:z", ErrInvalidPos, s)
	}
	var coords [3]int32
	for i, part := range parts[1:] {
		v, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return Pos{}, fmt.Errorf("%w: %q: %v", ErrInvalidPos, s, err)
		}
		coords[i] = int32(v)
	}
	return Pos{World: parts[0], X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

// FromProto converts a wire position. A nil position yields the zero Pos.
func FromProto(p *game.BlockPosition) Pos {
	if p == nil {
		return Pos{}
	}
	return Pos{World: p.World, X: p.X, Y: p.Y, Z: p.Z}
}

// ToProto converts p to its wire form.
func (p Pos) ToProto() *game.BlockPosition {
	return &game.BlockPosition{World: p.World, X: p.X, Y: p.Y, Z: p.Z}
}
