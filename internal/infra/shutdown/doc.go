// Package shutdown coordinates graceful process termination.
//
// Components register hooks in startup order; on SIGINT, SIGTERM or an
// explicit Trigger the hooks run in reverse order under one shared
// deadline. A hook error does not stop the remaining hooks.
//
// Usage:
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("storage", engine.Close)
//	h.OnShutdown("tcp", tcpServer.Shutdown)
//	err := h.Wait()
package shutdown
