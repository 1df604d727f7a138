package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Handle is a strong reference to a remote object: a generational index
// into the process-wide node arena. The zero Handle is "no object".
//
// Gen starts at 1 for every slot, so a non-zero handle always has Gen > 0.
// A slot's generation is bumped each time it is reused, which keeps a stale
// handle from ever aliasing a newer object.
type Handle struct {
	Index uint32
	Gen   uint32
}

// IsZero reports whether h refers to no object.
func (h Handle) IsZero() bool {
	return h.Gen == 0
}

// Weak returns the identity-only view of h.
func (h Handle) Weak() WeakHandle {
	return WeakHandle{h: h}
}

// String renders the handle as "h<index>.<gen>".
func (h Handle) String() string {
	return "h" + strconv.FormatUint(uint64(h.Index), 10) + "." + strconv.FormatUint(uint64(h.Gen), 10)
}

// ParseHandle parses the "h<index>.<gen>" form produced by String.
func ParseHandle(s string) (Handle, error) {
	body, ok := strings.CutPrefix(s, "h")
	if !ok {
		return Handle{}, ErrInvalidHandle.WithDetails(s)
	}
	idxStr, genStr, ok := strings.Cut(body, ".")
	if !ok {
		return Handle{}, ErrInvalidHandle.WithDetails(s)
	}
	idx, err := strconv.ParseUint(idxStr, 10, 32)
	if err != nil {
		return Handle{}, ErrInvalidHandle.WithDetails(s).WithCause(err)
	}
	gen, err := strconv.ParseUint(genStr, 10, 32)
	if err != nil || gen == 0 {
		return Handle{}, ErrInvalidHandle.WithDetails(s)
	}
	return Handle{Index: uint32(idx), Gen: uint32(gen)}, nil
}

// WeakHandle identifies an object without granting access to it. It is
// only good for identity comparison, e.g. when removing a dead subscriber.
type WeakHandle struct {
	h Handle
}

// Is reports whether w and h name the same object.
func (w WeakHandle) Is(h Handle) bool {
	return !h.IsZero() && w.h == h
}

// IsZero reports whether w names no object.
func (w WeakHandle) IsZero() bool {
	return w.h.IsZero()
}

// String renders the weak handle for logs.
func (w WeakHandle) String() string {
	return fmt.Sprintf("weak(%s)", w.h)
}
