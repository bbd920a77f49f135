package world

// tickHoppers advances every loaded hopper by one tick in deterministic
// chunk-then-position order.
//
// A cooling hopper only counts down. A ready hopper first tries to push
// one unit into the container directly below, then to pull one unit
// from the container directly above. Exactly one unit moves per tick;
// only a successful move re-arms the cooldown, so an idle hopper reacts
// on the very tick items appear.
func tickHoppers(s *ChunkStore, tick uint64, sink EventSink) {
	for _, k := range s.LoadedChunkKeys() {
		c, _ := s.Get(k)
		for _, pos := range c.EntityKeys() {
			h := c.Entities[pos]
			if h == nil || h.Kind != EntityHopper {
				continue
			}
			if h.Cooldown > 0 {
				h.Cooldown--
				c.markDirty()
				continue
			}

			moved := false
			if dst := containerAt(s, pos.Add(dirDown)); dst != nil {
				if item, err := TransferOne(&h.Inv, &dst.Inv); err == nil {
					moved = true
					// A hopper that just received an item starts cooling
					// as if it had moved one itself.
					if dst.Kind == EntityHopper && dst.Cooldown < HopperCooldownTicks {
						dst.Cooldown = HopperCooldownTicks
					}
					markEntityChunks(s, pos, dst.Pos)
					emitMove(sink, tick, pos, item)
				}
			}
			if !moved {
				if src := containerAt(s, pos.Add(dirUp)); src != nil {
					if item, err := TransferOne(&src.Inv, &h.Inv); err == nil {
						moved = true
						markEntityChunks(s, pos, src.Pos)
						emitMove(sink, tick, pos, item)
					}
				}
			}
			if moved {
				h.Cooldown = HopperCooldownTicks
			}
		}
	}
}

// containerAt returns the block entity at pos when its chunk is loaded.
// Unloaded neighbors read as no container, so hoppers at a residency
// seam simply wait.
func containerAt(s *ChunkStore, pos Vec3i) *BlockEntity {
	c, ok := s.Get(KeyFor(pos))
	if !ok {
		return nil
	}
	return c.Entities[pos]
}

func markEntityChunks(s *ChunkStore, a, b Vec3i) {
	if c, ok := s.Get(KeyFor(a)); ok {
		c.markDirty()
	}
	if c, ok := s.Get(KeyFor(b)); ok {
		c.markDirty()
	}
}

func emitMove(sink EventSink, tick uint64, pos Vec3i, item string) {
	if sink == nil {
		return
	}
	sink.Emit(Event{Tick: tick, Type: EvItemMove, Pos: [3]int{pos.X, pos.Y, pos.Z}, Detail: item})
}
