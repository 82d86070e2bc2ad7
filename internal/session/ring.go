package session

import "online-breakout/internal/game"

// snapshot is the store as it was before frame was simulated.
type snapshot struct {
	frame    int
	state    game.State
	checksum uint64
}

// snapshotRing keeps the most recent snapshots keyed by frame. Slots reuse
// their state's slice capacity, so saving does not allocate once warm.
type snapshotRing struct {
	slots []snapshot
}

func newSnapshotRing(size int) *snapshotRing {
	r := &snapshotRing{slots: make([]snapshot, size)}
	for i := range r.slots {
		r.slots[i].frame = -1
	}
	return r
}

// save captures sim as the state before frame.
func (r *snapshotRing) save(frame int, sim Simulator) *snapshot {
	slot := &r.slots[frame%len(r.slots)]
	sim.Save(&slot.state)
	slot.frame = frame
	slot.checksum = sim.Checksum()
	return slot
}

// get returns the snapshot for frame if it is still in the ring.
func (r *snapshotRing) get(frame int) (*snapshot, bool) {
	if frame < 0 {
		return nil, false
	}
	slot := &r.slots[frame%len(r.slots)]
	if slot.frame != frame {
		return nil, false
	}
	return slot, true
}
