package server

// Server is the lifecycle contract shared by the transport servers this
// package manages. RunServer blocks until the server stops; Shutdown asks it
// to stop and waits for in-flight work to drain.
type Server interface {
	RunServer()
	Shutdown()
}
