package world

import (
	"errors"
	"fmt"

	"voxelforge.dev/internal/protocol"
)

// RequestEnvelope pairs one bridge request with its reply channel. The
// transport buffers Resp with capacity 1 so the loop never blocks.
type RequestEnvelope struct {
	Req  protocol.Request
	Resp chan protocol.Result
}

// Submit queues a request for the next tick. Returns false when the
// inbox is full; the transport reports backpressure to the client.
func (w *World) Submit(env RequestEnvelope) bool {
	select {
	case w.inbox <- env:
		return true
	default:
		return false
	}
}

func (w *World) applyRequest(req protocol.Request) protocol.Result {
	res, err := w.dispatch(req)
	if err != nil {
		return errResult(req.ID, err)
	}
	res.Type = protocol.TypeResult
	res.ProtocolVersion = protocol.Version
	res.ID = req.ID
	res.OK = true
	return res
}

func (w *World) dispatch(req protocol.Request) (protocol.Result, error) {
	var res protocol.Result
	pos := Vec3i{X: req.Pos[0], Y: req.Pos[1], Z: req.Pos[2]}

	switch req.Op {
	case protocol.OpGetBlock:
		id, err := w.store.Block(pos)
		if err != nil {
			return res, err
		}
		res.BlockID = w.store.cat.Blocks.Name(id)

	case protocol.OpSetBlock:
		id, ok := w.store.cat.Blocks.Index[req.BlockID]
		if !ok {
			return res, badRequest("unknown block id %q", req.BlockID)
		}
		if err := w.SetBlockNamed(pos, id); err != nil {
			return res, err
		}

	case protocol.OpGetLight:
		sky, blk, err := w.store.Light(pos)
		if err != nil {
			return res, err
		}
		// Automation reads the light a sensor would see now, so the
		// stored skylight is scaled by time of day and weather.
		res.SkyLight = int(w.clock.EffectiveSkylight(sky))
		res.BlockLight = int(blk)

	case protocol.OpReadInventory:
		e, err := w.store.Entity(pos)
		if err != nil {
			return res, err
		}
		if e == nil {
			return res, invalidTarget("no container at %d,%d,%d", pos.X, pos.Y, pos.Z)
		}
		res.Slots = e.Inv.CopySlots()

	case protocol.OpLoadChunk:
		if _, err := w.store.Load(req.CX, req.CZ); err != nil {
			return res, err
		}
		w.emit(Event{Tick: w.tick.Load(), Type: EvChunkLoad, Pos: [3]int{req.CX, 0, req.CZ}})

	case protocol.OpUnloadChunk:
		if err := w.store.Unload(req.CX, req.CZ); err != nil {
			return res, err
		}
		w.emit(Event{Tick: w.tick.Load(), Type: EvChunkUnload, Pos: [3]int{req.CX, 0, req.CZ}})

	case protocol.OpQueryClock:
		res.Tick = w.tick.Load()
		res.TimeOfDay = w.clock.TimeOfDay()
		res.Weather = w.clock.Weather()

	default:
		return res, badRequest("unknown op %q", req.Op)
	}
	return res, nil
}

// SetBlockNamed writes a block through the store and emits the matching
// place or break event.
func (w *World) SetBlockNamed(pos Vec3i, id uint16) error {
	old, err := w.store.Block(pos)
	if err != nil {
		return err
	}
	if old == id {
		return nil
	}
	if err := w.store.SetBlock(pos, id); err != nil {
		return err
	}
	evType := EvBlockPlace
	name := w.store.cat.Blocks.Name(id)
	if id == 0 {
		evType = EvBlockBreak
		name = w.store.cat.Blocks.Name(old)
	}
	w.emit(Event{Tick: w.tick.Load(), Type: evType, Pos: [3]int{pos.X, pos.Y, pos.Z}, Detail: name})
	return nil
}

type reqError struct {
	code   string
	reason string
}

func (e *reqError) Error() string { return e.reason }

func badRequest(format string, args ...any) error {
	return &reqError{code: protocol.ErrBadRequest, reason: fmt.Sprintf(format, args...)}
}

func invalidTarget(format string, args ...any) error {
	return &reqError{code: protocol.ErrInvalidTarget, reason: fmt.Sprintf(format, args...)}
}

// errResult maps an internal error onto a wire result with a stable
// code.
func errResult(id string, err error) protocol.Result {
	code := protocol.ErrInternal
	var re *reqError
	switch {
	case errors.As(err, &re):
		code = re.code
	case errors.Is(err, ErrNotLoaded):
		code = protocol.ErrNotLoaded
	case errors.Is(err, ErrUnsupportedVersion):
		code = protocol.ErrUnsupportedVersion
	case errors.Is(err, ErrStorage):
		code = protocol.ErrStorage
	case errors.Is(err, ErrInvalidTransfer):
		code = protocol.ErrInvalidTransfer
	}
	return protocol.Result{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              id,
		OK:              false,
		Code:            code,
		Reason:          err.Error(),
	}
}
