package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits.
const (
	// MaxArrayLen limits the number of elements in an array or push frame.
	MaxArrayLen = 1024

	// MaxBulkLen limits a single bulk string. The largest payloads are debug
	// dumps rendered by the admin CLI.
	MaxBulkLen = 512 * 1024

	// MaxInlineLen limits inline command line length.
	MaxInlineLen = 4 * 1024

	// maxDepth bounds nested aggregates in replies.
	maxDepth = 8
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// ReadCommand reads one request. It returns nil args for an empty inline
// line or an empty array.
func ReadCommand(r *bufio.Reader) ([][]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}

	if b[0] != '*' {
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return nil, err
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			return nil, nil
		}
		out := make([][]byte, 0, len(parts))
		for _, p := range parts {
			out = append(out, []byte(p))
		}
		return out, nil
	}

	n, err := readHeader(r, '*')
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		arg, err := readBulkArg(r)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func readBulkArg(r *bufio.Reader) ([]byte, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return nil, err
	}
	if len(line) >= 1 && line[0] == '+' {
		return []byte(line[1:]), nil
	}
	if len(line) < 2 || line[0] != '$' {
		return nil, fmt.Errorf("%w: expected bulk string", ErrProtocol)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	return readBulkBody(r, n)
}

func readBulkBody(r *bufio.Reader, n int) ([]byte, error) {
	if n == -1 {
		return nil, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n > MaxBulkLen {
		return nil, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n], nil
}

func readHeader(r *bufio.Reader, want byte) (int, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return 0, err
	}
	if len(line) < 2 || line[0] != want {
		return 0, fmt.Errorf("%w: expected %q header", ErrProtocol, want)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid length", ErrProtocol)
	}
	if n > MaxArrayLen {
		return 0, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}
	return n, nil
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		return "", err
	}

	if len(buf) > maxLen+2 {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(buf[:len(buf)-2]), nil
}

// NormalizeCommandName upper-cases an ASCII command name.
func NormalizeCommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
