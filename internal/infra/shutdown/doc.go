// Package shutdown coordinates process termination for the registry.
//
// SIGINT and SIGTERM (or a call to Trigger) run the registered hooks in
// reverse order under a shared deadline. SIGHUP runs the reload hooks
// and keeps the process alive.
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("rpc", srv.Stop)
//	h.OnReload("policy", policy.Reload)
//	err := h.Wait(ctx)
package shutdown
