package world

// generate fills a fresh chunk from the seed. Terrain is a hashed
// heightfield: stone strata with ore rolls, a soil cap, surface block
// by biome, air above. The same seed and coordinates always produce
// the same chunk.
func (s *ChunkStore) generate(c *Chunk) {
	ids := s.cat.Blocks.Index
	air := ids["AIR"]
	stone := ids["STONE"]
	dirt := ids["DIRT"]
	grass := ids["GRASS"]
	sand := ids["SAND"]
	gravel := ids["GRAVEL"]
	coal := ids["COAL_ORE"]
	iron := ids["IRON_ORE"]

	base := s.gen.Height / 4
	span := s.gen.Height / 4
	if span < 1 {
		span = 1
	}

	for z := 0; z < ChunkSide; z++ {
		for x := 0; x < ChunkSide; x++ {
			wx := c.CX*ChunkSide + x
			wz := c.CZ*ChunkSide + z

			surface := base + int(hash2(s.gen.Seed, wx, wz)%uint64(span))
			desert := hash2(s.gen.Seed^0x5eed, floorDiv(wx, 64), floorDiv(wz, 64))%3 == 0

			for y := 0; y < c.Height; y++ {
				b := air
				switch {
				case y < surface-3:
					b = stone
					roll := hash3(s.gen.Seed, wx, y, wz) % 1000
					switch {
					case roll < 12:
						b = iron
					case roll < 40:
						b = coal
					case roll < 55:
						b = gravel
					}
				case y < surface:
					b = dirt
					if desert {
						b = sand
					}
				case y == surface:
					b = grass
					if desert {
						b = sand
					}
				}
				c.Blocks[c.index(x, y, z)] = b
			}
		}
	}
}
