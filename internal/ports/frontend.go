package ports

// Frontend is a long-running user-facing component, such as a chat bot
// that accepts commands
type Frontend interface {
	// Start starts serving in the background
	Start() error

	// Stop stops serving
	Stop() error
}
