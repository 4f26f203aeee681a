package block

import (
	"errors"
	"strconv"
)

// Типы блоков
const (
	TypeAir       int32 = 0
	TypeGrass     int32 = 1
	TypeDirt      int32 = 2
	TypeStone     int32 = 3
	TypeWater     int32 = 4
	TypeSand      int32 = 5
	TypeWood      int32 = 6
	TypeLeaves    int32 = 7
	TypeSnow      int32 = 8
	TypeTallGrass int32 = 9
	TypeFlower    int32 = 10
)

var names = map[int32]string{
	TypeAir:       "air",
	TypeGrass:     "grass",
	TypeDirt:      "dirt",
	TypeStone:     "stone",
	TypeWater:     "water",
	TypeSand:      "sand",
	TypeWood:      "wood",
	TypeLeaves:    "leaves",
	TypeSnow:      "snow",
	TypeTallGrass: "tall_grass",
	TypeFlower:    "flower",
}

// Name возвращает читаемое имя типа блока. Типы, зарегистрированные
// плагинами, выводятся числом.
func Name(blockType int32) string {
	if n, ok := names[blockType]; ok {
		return n
	}
	return "block#" + strconv.FormatInt(int64(blockType), 10)
}

// Ошибки
var (
	ErrInvalidBlockType = errors.New("invalid block type")
	ErrOccupied         = errors.New("position is occupied")
	ErrNothingToBreak   = errors.New("no block at position")
)
