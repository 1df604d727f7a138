package rpcserver

import (
	"bufio"
	"errors"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/pkg/resp"
)

// reply renders one response. Replies are built off the write lock and
// written under it.
type reply func(w *bufio.Writer) error

func simpleReply(s string) reply {
	return func(w *bufio.Writer) error { return resp.WriteSimpleString(w, s) }
}

func okReply() reply {
	return simpleReply("OK")
}

func bulkReply(s string) reply {
	return func(w *bufio.Writer) error { return resp.WriteBulkString(w, s) }
}

func nullReply() reply {
	return resp.WriteNullBulk
}

func intReply(n int64) reply {
	return func(w *bufio.Writer) error { return resp.WriteInteger(w, n) }
}

func boolReply(ok bool) reply {
	if ok {
		return intReply(1)
	}
	return intReply(0)
}

func arrayReply(items []string) reply {
	return func(w *bufio.Writer) error { return resp.WriteStringArray(w, items) }
}

func handleReply(h domain.Handle) reply {
	if h.IsZero() {
		return nullReply()
	}
	return bulkReply(h.String())
}

func errReply(err error) reply {
	line := formatError(err)
	return func(w *bufio.Writer) error { return resp.WriteError(w, line) }
}

// formatError renders DomainErrors with their code and anything else as
// a plain "ERR <message>".
func formatError(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.WireString()
	}
	return "ERR " + err.Error()
}

func arityError(cmd string) reply {
	return errReply(domain.ErrBadRequest.WithDetails("wrong number of arguments for '" + cmd + "'"))
}
