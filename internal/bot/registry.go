package bot

// Registry holds the message strategies in match order and the postback router.
type Registry struct {
	handlers []Handler
	postback PostbackHandler
}

// NewRegistry creates a new handler registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a message handler. Earlier handlers win.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

// SetPostbackHandler installs the postback router.
func (r *Registry) SetPostbackHandler(h PostbackHandler) {
	r.postback = h
}

// Match returns the first handler that accepts text, or nil.
func (r *Registry) Match(text string) Handler {
	for _, h := range r.handlers {
		if h.CanHandle(text) {
			return h
		}
	}
	return nil
}

// PostbackHandler returns the installed postback router, or nil.
func (r *Registry) PostbackHandler() PostbackHandler {
	return r.postback
}
