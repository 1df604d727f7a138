package resp

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the RESP type byte of a reply.
type Kind byte

const (
	KindSimple  Kind = '+'
	KindError   Kind = '-'
	KindInteger Kind = ':'
	KindBulk    Kind = '$'
	KindArray   Kind = '*'
	KindPush    Kind = '>'
)

// Value is a decoded reply.
type Value struct {
	Kind  Kind
	Str   string // simple string, error text or bulk contents
	Int   int64
	Null  bool // null bulk or null array
	Elems []Value
}

// IsPush reports whether v is an out-of-band push frame.
func (v Value) IsPush() bool {
	return v.Kind == KindPush
}

// Err returns the server error carried by v, or nil.
func (v Value) Err() error {
	if v.Kind != KindError {
		return nil
	}
	return &ServerError{Msg: v.Str}
}

// Strings flattens an array of bulk/simple strings.
func (v Value) Strings() []string {
	out := make([]string, 0, len(v.Elems))
	for _, e := range v.Elems {
		out = append(out, e.Str)
	}
	return out
}

// ServerError is an error line returned by the server.
type ServerError struct {
	Msg string
}

func (e *ServerError) Error() string {
	return e.Msg
}

// Code returns the registry error code of an "ERR <code> <message>" line,
// or "" if the line carries none.
func (e *ServerError) Code() string {
	fields := strings.Fields(e.Msg)
	if len(fields) >= 2 && fields[0] == "ERR" && strings.HasPrefix(fields[1], "SR-") {
		return fields[1]
	}
	return ""
}

// ReadValue reads one reply or push frame.
func ReadValue(r *bufio.Reader) (Value, error) {
	return readValue(r, 0)
}

func readValue(r *bufio.Reader, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("%w: nesting too deep", ErrLimitExceeded)
	}
	line, err := readLine(r, MaxInlineLen)
	if err != nil {
		return Value{}, err
	}
	if line == "" {
		return Value{}, fmt.Errorf("%w: empty line", ErrProtocol)
	}

	kind, body := Kind(line[0]), line[1:]
	switch kind {
	case KindSimple, KindError:
		return Value{Kind: kind, Str: body}, nil
	case KindInteger:
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid integer", ErrProtocol)
		}
		return Value{Kind: kind, Int: n}, nil
	case KindBulk:
		n, err := strconv.Atoi(body)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
		}
		b, err := readBulkBody(r, n)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Str: string(b), Null: n == -1}, nil
	case KindArray, KindPush:
		n, err := strconv.Atoi(body)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid array length", ErrProtocol)
		}
		if n == -1 {
			return Value{Kind: kind, Null: true}, nil
		}
		if n < 0 || n > MaxArrayLen {
			return Value{}, fmt.Errorf("%w: array length %d", ErrLimitExceeded, n)
		}
		v := Value{Kind: kind, Elems: make([]Value, 0, n)}
		for i := 0; i < n; i++ {
			e, err := readValue(r, depth+1)
			if err != nil {
				return Value{}, err
			}
			v.Elems = append(v.Elems, e)
		}
		return v, nil
	default:
		return Value{}, fmt.Errorf("%w: unknown type %q", ErrProtocol, line[0])
	}
}
