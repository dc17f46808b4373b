package mixer

// stereoFrame is a single interleaved stereo sample pair.
type stereoFrame [2]float32

var silentFrame = stereoFrame{0, 0}

// delayLine is a fixed-capacity circular buffer of stereo frames providing
// a settable non-negative integer frame delay. Negative latency ("advance
// audio") is modeled externally by the source as an advance deficit — see
// source.go — so this type only ever moves audio forward in time.
type delayLine struct {
	buffer      []stereoFrame
	capacity    int
	readIdx     int
	writeIdx    int
	length      int
	targetDelay int
}

// minDelayLineCapacity is the smallest capacity newDelayLine allocates.
// newSource sizes each source's line to eight render blocks so large latency
// windows fit without reallocation.
const minDelayLineCapacity = 32

func newDelayLine(capacity int) *delayLine {
	if capacity < minDelayLineCapacity {
		capacity = minDelayLineCapacity
	}
	return &delayLine{
		buffer:   make([]stereoFrame, capacity),
		capacity: capacity,
	}
}

// setTarget clamps the requested delay to capacity-1.
func (d *delayLine) setTarget(frames int) {
	max := d.capacity - 1
	if frames > max {
		frames = max
	}
	if frames < 0 {
		frames = 0
	}
	d.targetDelay = frames
}

// dropFrames pops up to n frames without emitting them, returning the
// number actually dropped.
func (d *delayLine) dropFrames(n int) int {
	if n > d.length {
		n = d.length
	}
	for i := 0; i < n; i++ {
		d.popInternal()
	}
	return n
}

func (d *delayLine) popInternal() (stereoFrame, bool) {
	if d.length == 0 {
		return silentFrame, false
	}
	frame := d.buffer[d.readIdx]
	d.readIdx = (d.readIdx + 1) % d.capacity
	d.length--
	return frame, true
}

// processFrame writes in, then — if the line currently holds more than
// targetDelay frames — pops and returns the oldest frame; otherwise returns
// silence. At steady state this imposes exactly targetDelay frames of lag.
func (d *delayLine) processFrame(in stereoFrame) stereoFrame {
	d.buffer[d.writeIdx] = in
	d.writeIdx = (d.writeIdx + 1) % d.capacity
	if d.length < d.capacity {
		d.length++
	} else {
		// Buffer was already full: the write above overwrote the oldest
		// sample, so the read cursor must follow.
		d.readIdx = (d.readIdx + 1) % d.capacity
	}

	if d.length > d.targetDelay {
		if frame, ok := d.popInternal(); ok {
			return frame
		}
	}
	return silentFrame
}
