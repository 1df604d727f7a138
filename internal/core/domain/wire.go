package domain

import "strings"

const wirePrefix = "ERR "

// known lists the errors ParseWireError can restore by code.
var known = []*DomainError{
	ErrInvalidFQName, ErrEmptyInstance,
	ErrPermissionDenied, ErrNoLabel,
	ErrInvalidHandle, ErrNodeNotFound, ErrNodeDead, ErrDeliveryFailed,
	ErrTokenMalformed, ErrTokenInvalid,
	ErrInternal, ErrUnavailable, ErrBadRequest, ErrRateLimited,
}

// WireString renders e as a RESP error line: "ERR <code> <message>" with
// ": <details>" appended when set.
func (e *DomainError) WireString() string {
	s := wirePrefix + e.Code + " " + e.Message
	if e.Details != "" {
		s += ": " + e.Details
	}
	return s
}

// ParseWireError turns an error line written by WireString back into a
// DomainError. ok is false if the line carries no SR- code. For a known
// code the catalogue message is restored and anything after it becomes
// Details.
func ParseWireError(line string) (de *DomainError, ok bool) {
	rest, found := strings.CutPrefix(line, wirePrefix)
	if !found {
		return nil, false
	}
	code, text, _ := strings.Cut(rest, " ")
	if !strings.HasPrefix(code, "SR-") {
		return nil, false
	}

	for _, k := range known {
		if k.Code != code {
			continue
		}
		if text == k.Message {
			return k.WithDetails(""), true
		}
		if details, cut := strings.CutPrefix(text, k.Message+": "); cut {
			return k.WithDetails(details), true
		}
		break
	}
	return NewDomainError(code, text), true
}
