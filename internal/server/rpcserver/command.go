package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/internal/core/service"
	"github.com/yndnr/svcreg-go/pkg/resp"
	"github.com/yndnr/svcreg-go/pkg/token"
)

// anyInstance stands for the empty instance name in SUBSCRIBE and
// UNSUBSCRIBE: a subscription to every instance of the interface.
const anyInstance = "-"

var knownCommands = map[string]struct{}{
	"PING": {}, "QUIT": {}, "WHOAMI": {}, "OBJECT": {}, "DROP": {},
	"ADD": {}, "GET": {}, "TRANSPORT": {}, "LIST": {}, "LISTBYINTERFACE": {},
	"LISTMANIFEST": {}, "SUBSCRIBE": {}, "UNSUBSCRIBE": {}, "DEBUGDUMP": {},
	"PASSTHROUGH": {}, "TRYUNREGISTER": {}, "TOKEN.CREATE": {}, "TOKEN.GET": {},
	"TOKEN.UNREGISTER": {},
}

// commandLabel bounds the metric label set to the commands served.
func commandLabel(cmd string) string {
	if _, ok := knownCommands[cmd]; ok {
		return cmd
	}
	return "UNKNOWN"
}

// CommandHandler maps RESP commands onto the registry.
type CommandHandler struct {
	dispatcher *service.Dispatcher
	nodes      *NodeTable
	timeout    time.Duration
	logger     *slog.Logger
}

// NewCommandHandler creates a CommandHandler. timeout bounds each wait on
// the registry loop.
func NewCommandHandler(dispatcher *service.Dispatcher, nodes *NodeTable, timeout time.Duration, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHandler{
		dispatcher: dispatcher,
		nodes:      nodes,
		timeout:    timeout,
		logger:     logger,
	}
}

// Handle runs one command for conn. args[0] is the command name.
func (h *CommandHandler) Handle(ctx context.Context, conn *Conn, args [][]byte) reply {
	cmd := resp.NormalizeCommandName(args[0])
	argv := make([]string, len(args)-1)
	for i, a := range args[1:] {
		argv[i] = string(a)
	}

	switch cmd {
	case "PING":
		return h.handlePing(argv)
	case "QUIT":
		conn.quit = true
		return okReply()
	case "WHOAMI":
		return h.handleWhoami(conn, argv)
	case "OBJECT":
		return h.handleObject(conn, argv)
	case "DROP":
		return h.handleDrop(conn, argv)
	case "ADD":
		return h.handleAdd(ctx, conn, argv)
	case "GET":
		return h.handleGet(ctx, conn, argv)
	case "TRANSPORT":
		return h.handleTransport(ctx, conn, argv)
	case "LIST":
		return h.handleList(ctx, conn, argv)
	case "LISTBYINTERFACE":
		return h.handleListByInterface(ctx, conn, argv)
	case "LISTMANIFEST":
		return h.handleListManifest(ctx, conn, argv)
	case "SUBSCRIBE":
		return h.handleSubscribe(ctx, conn, argv, true)
	case "UNSUBSCRIBE":
		return h.handleSubscribe(ctx, conn, argv, false)
	case "DEBUGDUMP":
		return h.handleDebugDump(ctx, conn, argv)
	case "PASSTHROUGH":
		return h.handlePassthrough(ctx, conn, argv)
	case "TRYUNREGISTER":
		return h.handleTryUnregister(ctx, conn, argv)
	case "TOKEN.CREATE":
		return h.handleTokenCreate(ctx, argv)
	case "TOKEN.GET":
		return h.handleTokenGet(ctx, argv)
	case "TOKEN.UNREGISTER":
		return h.handleTokenUnregister(ctx, argv)
	default:
		return errReply(domain.ErrBadRequest.WithDetails("unknown command '" + cmd + "'"))
	}
}

// do runs fn on the registry loop within the handler timeout.
func (h *CommandHandler) do(ctx context.Context, fn func(m *service.ServiceManager, t *service.TokenManager)) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	if err := h.dispatcher.Do(ctx, fn); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.ErrUnavailable.WithCause(err)
		}
		return err
	}
	return nil
}

func (h *CommandHandler) handlePing(argv []string) reply {
	switch len(argv) {
	case 0:
		return simpleReply("PONG")
	case 1:
		return bulkReply(argv[0])
	default:
		return arityError("PING")
	}
}

// WHOAMI
func (h *CommandHandler) handleWhoami(conn *Conn, argv []string) reply {
	if len(argv) != 0 {
		return arityError("WHOAMI")
	}
	return arrayReply([]string{conn.id, strconv.Itoa(conn.pid), conn.label})
}

// OBJECT <iface> [<iface>...]
func (h *CommandHandler) handleObject(conn *Conn, argv []string) reply {
	if len(argv) == 0 {
		return arityError("OBJECT")
	}
	ref, err := h.nodes.Export(conn, argv)
	if err != nil {
		return errReply(err)
	}
	conn.own(ref)
	return bulkReply(ref.String())
}

// DROP <handle>
func (h *CommandHandler) handleDrop(conn *Conn, argv []string) reply {
	if len(argv) != 1 {
		return arityError("DROP")
	}
	ref, err := domain.ParseHandle(argv[0])
	if err != nil {
		return errReply(err)
	}
	if !conn.owns(ref) {
		return errReply(domain.ErrNodeNotFound.WithDetails(argv[0]))
	}
	conn.disown(ref)
	h.nodes.Drop(ref)
	return okReply()
}

// ADD <instance> <handle>
func (h *CommandHandler) handleAdd(ctx context.Context, conn *Conn, argv []string) reply {
	if len(argv) != 2 {
		return arityError("ADD")
	}
	ref, err := domain.ParseHandle(argv[1])
	if err != nil {
		return errReply(err)
	}

	var ok bool
	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		ok = m.Add(caller, argv[0], ref)
	}); err != nil {
		return errReply(err)
	}
	return boolReply(ok)
}

// GET <iface> <instance>
func (h *CommandHandler) handleGet(ctx context.Context, conn *Conn, argv []string) reply {
	if len(argv) != 2 {
		return arityError("GET")
	}

	var ref domain.Handle
	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		ref = m.Get(caller, argv[0], argv[1])
	}); err != nil {
		return errReply(err)
	}
	return handleReply(ref)
}

// TRANSPORT <iface> <instance>
func (h *CommandHandler) handleTransport(ctx context.Context, conn *Conn, argv []string) reply {
	if len(argv) != 2 {
		return arityError("TRANSPORT")
	}

	var tr domain.Transport
	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		tr = m.GetTransport(caller, argv[0], argv[1])
	}); err != nil {
		return errReply(err)
	}
	return simpleReply(tr.String())
}

// LIST
func (h *CommandHandler) handleList(ctx context.Context, conn *Conn, argv []string) reply {
	if len(argv) != 0 {
		return arityError("LIST")
	}

	var out []string
	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		out = m.List(caller)
	}); err != nil {
		return errReply(err)
	}
	return arrayReply(out)
}

// LISTBYINTERFACE <iface>
func (h *CommandHandler) handleListByInterface(ctx context.Context, conn *Conn, argv []string) reply {
	if len(argv) != 1 {
		return arityError("LISTBYINTERFACE")
	}

	var out []string
	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		out = m.ListByInterface(caller, argv[0])
	}); err != nil {
		return errReply(err)
	}
	return arrayReply(out)
}

// LISTMANIFEST <iface>
func (h *CommandHandler) handleListManifest(ctx context.Context, conn *Conn, argv []string) reply {
	if len(argv) != 1 {
		return arityError("LISTMANIFEST")
	}

	var out []string
	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		out = m.ListManifestByInterface(caller, argv[0])
	}); err != nil {
		return errReply(err)
	}
	return arrayReply(out)
}

// SUBSCRIBE <iface> <instance|-> <handle>
// UNSUBSCRIBE <iface> <instance|-> <handle>
func (h *CommandHandler) handleSubscribe(ctx context.Context, conn *Conn, argv []string, subscribe bool) reply {
	if len(argv) != 3 {
		if subscribe {
			return arityError("SUBSCRIBE")
		}
		return arityError("UNSUBSCRIBE")
	}
	sink, err := domain.ParseHandle(argv[2])
	if err != nil {
		return errReply(err)
	}
	iface, instance := argv[0], argv[1]
	if instance == anyInstance {
		instance = ""
	}

	var ok bool
	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		if subscribe {
			ok = m.RegisterForNotifications(caller, iface, instance, sink)
		} else {
			ok = m.UnregisterForNotifications(caller, iface, instance, sink)
		}
	}); err != nil {
		return errReply(err)
	}
	return boolReply(ok)
}

// DEBUGDUMP
func (h *CommandHandler) handleDebugDump(ctx context.Context, conn *Conn, argv []string) reply {
	if len(argv) != 0 {
		return arityError("DEBUGDUMP")
	}

	var infos []domain.InstanceDebugInfo
	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		infos = m.DebugDump(caller)
	}); err != nil {
		return errReply(err)
	}

	data, err := json.Marshal(infos)
	if err != nil {
		return errReply(domain.ErrInternal.WithCause(err))
	}
	return bulkReply(string(data))
}

// PASSTHROUGH <iface> <instance>
func (h *CommandHandler) handlePassthrough(ctx context.Context, conn *Conn, argv []string) reply {
	if len(argv) != 2 {
		return arityError("PASSTHROUGH")
	}

	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		m.RegisterPassthroughClient(caller, argv[0], argv[1])
	}); err != nil {
		return errReply(err)
	}
	return okReply()
}

// TRYUNREGISTER <iface> <instance> <handle>
func (h *CommandHandler) handleTryUnregister(ctx context.Context, conn *Conn, argv []string) reply {
	if len(argv) != 3 {
		return arityError("TRYUNREGISTER")
	}
	ref, err := domain.ParseHandle(argv[2])
	if err != nil {
		return errReply(err)
	}

	var ok bool
	caller := conn.Caller()
	if err := h.do(ctx, func(m *service.ServiceManager, _ *service.TokenManager) {
		ok = m.TryUnregister(caller, argv[0], argv[1], ref)
	}); err != nil {
		return errReply(err)
	}
	return boolReply(ok)
}

// TOKEN.CREATE <handle>
//
// Replies null for handles that are not live objects.
func (h *CommandHandler) handleTokenCreate(ctx context.Context, argv []string) reply {
	if len(argv) != 1 {
		return arityError("TOKEN.CREATE")
	}
	ref, err := domain.ParseHandle(argv[0])
	if err != nil {
		return errReply(err)
	}
	if !h.nodes.Alive(ref) {
		return nullReply()
	}

	var tok []byte
	if err := h.do(ctx, func(_ *service.ServiceManager, t *service.TokenManager) {
		tok = t.CreateToken(ref)
	}); err != nil {
		return errReply(err)
	}
	if tok == nil {
		return nullReply()
	}
	return bulkReply(token.Encode(tok))
}

// TOKEN.GET <token>
func (h *CommandHandler) handleTokenGet(ctx context.Context, argv []string) reply {
	if len(argv) != 1 {
		return arityError("TOKEN.GET")
	}
	tok, err := token.Decode(argv[0])
	if err != nil {
		return errReply(domain.ErrTokenMalformed.WithCause(err))
	}

	var ref domain.Handle
	if err := h.do(ctx, func(_ *service.ServiceManager, t *service.TokenManager) {
		ref = t.Get(tok)
	}); err != nil {
		return errReply(err)
	}
	return handleReply(ref)
}

// TOKEN.UNREGISTER <token>
func (h *CommandHandler) handleTokenUnregister(ctx context.Context, argv []string) reply {
	if len(argv) != 1 {
		return arityError("TOKEN.UNREGISTER")
	}
	tok, err := token.Decode(argv[0])
	if err != nil {
		return errReply(domain.ErrTokenMalformed.WithCause(err))
	}

	var ok bool
	if err := h.do(ctx, func(_ *service.ServiceManager, t *service.TokenManager) {
		ok = t.Unregister(tok)
	}); err != nil {
		return errReply(err)
	}
	return boolReply(ok)
}
