package sim

// MaxFrames is the ring's capacity (BUF in the spec). It must be a
// power of two so the frame % MaxFrames slot mapping stays continuous
// when the uint32 frame counter wraps around.
const MaxFrames = 256

// FrameRing is a fixed-size circular buffer mapping an absolute frame
// number to a (GameState, GameEvents) slot. It performs no bounds or
// freshness checking of its own: the caller is responsible for only
// reading a slot that still represents the frame it claims to, per the
// window invariant enforced by ServerSynchronizer and ClientEngine.
type FrameRing struct {
	states     [MaxFrames]GameState
	events     [MaxFrames]GameEvents
	startFrame uint32
}

// Init zeroes every slot and records the frame the ring starts tracking
// from. It does not allocate; FrameRing is meant to be embedded by value.
func (r *FrameRing) Init(startFrame uint32) {
	for i := range r.states {
		r.states[i] = GameState{}
		r.events[i] = GameEvents{}
	}
	r.startFrame = startFrame
}

func slot(frame uint32) uint32 {
	return frame % MaxFrames
}

// StateAt returns the slot for frame F. The ring does not validate that
// the slot currently holds frame F's data; that is the window invariant's
// job, enforced by the caller.
func (r *FrameRing) StateAt(frame uint32) *GameState {
	return &r.states[slot(frame)]
}

// EventsAt returns the events slot for frame F, same caveat as StateAt.
func (r *FrameRing) EventsAt(frame uint32) *GameEvents {
	return &r.events[slot(frame)]
}

// StartFrame returns the frame recorded at Init.
func (r *FrameRing) StartFrame() uint32 {
	return r.startFrame
}
