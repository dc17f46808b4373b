package mixer

import "fmt"

// UnsupportedChannelsError reports that a caller supplied a channel count
// other than the fixed stereo layout this core supports.
type UnsupportedChannelsError struct {
	Channels int
}

func (e *UnsupportedChannelsError) Error() string {
	return fmt.Sprintf("mixer: unsupported channel count %d, only stereo is supported", e.Channels)
}

// UnknownSourceError reports that a control call referenced a source id
// that was never registered.
type UnknownSourceError struct {
	ID SourceID
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("mixer: unknown source id %d", e.ID)
}

// InvalidLengthError reports that a push buffer length was not a multiple
// of the channel count.
type InvalidLengthError struct {
	Length int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("mixer: buffer length %d is not a multiple of %d channels", e.Length, Channels)
}

// ErrNullBuffer is returned by external bindings when a caller-supplied
// buffer pointer was null. The pure-Go API never constructs this itself
// since it operates on slices, but it is part of the external contract for
// any cgo/FFI bridge built on top of this package.
var ErrNullBuffer = fmt.Errorf("mixer: null buffer")
