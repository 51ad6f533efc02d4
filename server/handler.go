package server

// Connection is the view of a client connection given to handlers.
type Connection interface {
	// ID returns the connection's unique identifier.
	ID() string
	// RemoteAddr returns the peer endpoint.
	RemoteAddr() string
}

// CommandHandler executes one named command.
//
// Execute receives the request parameters and the originating connection.
// A nil return means the handler produced no result: legacy requests then
// get a "Command returned no response" error envelope and tools/call
// answers with an internal error.
type CommandHandler interface {
	CommandName() string
	Execute(params map[string]any, conn Connection) map[string]any
}

// HandlerFunc adapts a function to a CommandHandler.
type HandlerFunc func(params map[string]any, conn Connection) map[string]any

type funcHandler struct {
	name string
	fn   HandlerFunc
}

// NewHandler returns a CommandHandler named name that calls fn.
//
// Example:
//
//	srv.RegisterExternalCommandHandler(server.NewHandler("echo",
//	    func(params map[string]any, _ server.Connection) map[string]any {
//	        return map[string]any{"status": "success", "result": params}
//	    }))
func NewHandler(name string, fn HandlerFunc) CommandHandler {
	return &funcHandler{name: name, fn: fn}
}

func (h *funcHandler) CommandName() string { return h.name }

func (h *funcHandler) Execute(params map[string]any, conn Connection) map[string]any {
	return h.fn(params, conn)
}

// ToolDescriber supplies tools/list metadata for registered commands.
// Commands it does not know are listed with a generic description and an
// object schema.
type ToolDescriber interface {
	DescribeTool(name string) (description string, inputSchema map[string]any, ok bool)
}
