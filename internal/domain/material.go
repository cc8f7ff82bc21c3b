package domain

import (
	"fmt"
	"strings"
)

// Material is an uppercase block material token as used by the game server
type Material string

const (
	MaterialAir         Material = "AIR"
	MaterialStone       Material = "STONE"
	MaterialGrassBlock  Material = "GRASS_BLOCK"
	MaterialDirt        Material = "DIRT"
	MaterialCobblestone Material = "COBBLESTONE"
	MaterialOakPlanks   Material = "OAK_PLANKS"
	MaterialOakLog      Material = "OAK_LOG"
	MaterialSand        Material = "SAND"
	MaterialGravel      Material = "GRAVEL"
	MaterialGlass       Material = "GLASS"
	MaterialTinted      Material = "TINTED_GLASS"
	MaterialGlowstone   Material = "GLOWSTONE"
	MaterialSeaLantern  Material = "SEA_LANTERN"
	MaterialShroomlight Material = "SHROOMLIGHT"
	MaterialChest       Material = "CHEST"
	MaterialBarrel      Material = "BARREL"
	MaterialFurnace     Material = "FURNACE"
	MaterialCraftTable  Material = "CRAFTING_TABLE"
	MaterialTorch       Material = "TORCH"
	MaterialWheat       Material = "WHEAT"
	MaterialIronOre     Material = "IRON_ORE"
	MaterialGoldOre     Material = "GOLD_ORE"
	MaterialDiamondOre  Material = "DIAMOND_ORE"
	MaterialCoalOre     Material = "COAL_ORE"
	MaterialObsidian    Material = "OBSIDIAN"
	MaterialBedrock     Material = "BEDROCK"
	MaterialRedWool     Material = "RED_WOOL"
	MaterialBlueWool    Material = "BLUE_WOOL"
	MaterialGreenWool   Material = "GREEN_WOOL"
	MaterialYellowWool  Material = "YELLOW_WOOL"
	MaterialWhiteWool   Material = "WHITE_WOOL"
	MaterialBlackWool   Material = "BLACK_WOOL"
	MaterialRedGlass    Material = "RED_STAINED_GLASS"
	MaterialBlueGlass   Material = "BLUE_STAINED_GLASS"
	MaterialGreenGlass  Material = "GREEN_STAINED_GLASS"
	MaterialWoodenSword Material = "WOODEN_SWORD"
)

// DefaultOutline is the outline material given to clans that don't pick one
const DefaultOutline = MaterialGlowstone

var knownMaterials = map[Material]struct{}{
	MaterialAir: {}, MaterialStone: {}, MaterialGrassBlock: {}, MaterialDirt: {},
	MaterialCobblestone: {}, MaterialOakPlanks: {}, MaterialOakLog: {}, MaterialSand: {},
	MaterialGravel: {}, MaterialGlass: {}, MaterialTinted: {}, MaterialGlowstone: {},
	MaterialSeaLantern: {}, MaterialShroomlight: {}, MaterialChest: {}, MaterialBarrel: {},
	MaterialFurnace: {}, MaterialCraftTable: {}, MaterialTorch: {}, MaterialWheat: {},
	MaterialIronOre: {}, MaterialGoldOre: {}, MaterialDiamondOre: {}, MaterialCoalOre: {},
	MaterialObsidian: {}, MaterialBedrock: {}, MaterialRedWool: {}, MaterialBlueWool: {},
	MaterialGreenWool: {}, MaterialYellowWool: {}, MaterialWhiteWool: {}, MaterialBlackWool: {},
	MaterialRedGlass: {}, MaterialBlueGlass: {}, MaterialGreenGlass: {}, MaterialWoodenSword: {},
}

// ParseMaterial converts a token into a Material. Matching is case-insensitive;
// unknown tokens are an error.
func ParseMaterial(s string) (Material, error) {
	m := Material(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownMaterials[m]; !ok {
		return "", fmt.Errorf("unknown material %q", s)
	}
	return m, nil
}

// Valid reports whether m is a known material token
func (m Material) Valid() bool {
	_, ok := knownMaterials[m]
	return ok
}

func (m Material) String() string {
	return string(m)
}
