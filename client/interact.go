package client

import "go.uber.org/zap"

// DefaultHeld is the block type held before anything is picked.
const DefaultHeld uint16 = 1

// Interactor turns clicks into grid mutations against the current target.
// Every mutation recasts the target, so later clicks in the same tick see
// the changed grid.
type Interactor struct {
	log      *zap.SugaredLogger
	grid     VoxelGrid
	targeter *Targeter

	// Held is the block type placed on right click.
	Held uint16
}

func NewInteractor(log *zap.SugaredLogger, grid VoxelGrid, targeter *Targeter) *Interactor {
	return &Interactor{log: log, grid: grid, targeter: targeter, Held: DefaultHeld}
}

// Break clears the targeted voxel. No target, no-op.
func (in *Interactor) Break() {
	t := in.targeter.Target()
	if t.Target == nil {
		return
	}
	c := *t.Target
	in.grid.UpdateVoxel(c.X, c.Y, c.Z, 0, Orientation{})
	in.targeter.Refresh()
	in.log.Debugw("break", "x", c.X, "y", c.Y, "z", c.Z)
}

// Place puts the held block into the placement cell.
func (in *Interactor) Place() {
	t := in.targeter.Target()
	if t.Placement == nil || in.Held == 0 {
		return
	}
	c := *t.Placement
	in.grid.UpdateVoxel(c.X, c.Y, c.Z, in.Held, t.Orientation)
	in.targeter.Refresh()
	in.log.Debugw("place", "x", c.X, "y", c.Y, "z", c.Z, "type", in.Held)
}

// Pick copies the targeted voxel's type into Held. Picking empty keeps the current block.
func (in *Interactor) Pick() {
	t := in.targeter.Target()
	if t.Target == nil {
		return
	}
	c := *t.Target
	id := in.grid.GetVoxel(c.X, c.Y, c.Z).ID()
	if id == 0 {
		return
	}
	in.Held = id
}
