// Package auth models the acting principal and the request context that
// field authorization decisions depend on.
package auth

import "strings"

// Context identifies which admin screen a request belongs to.
type Context string

const (
	ContextIndex          Context = "index"
	ContextDetail         Context = "detail"
	ContextCreate         Context = "create"
	ContextUpdate         Context = "update"
	ContextAttach         Context = "attach"
	ContextUpdateAttached Context = "update-attached"
)

// ParseContext maps a query-string value onto a Context. Unknown values
// fall back to ContextDetail.
func ParseContext(s string) Context {
	switch c := Context(strings.ToLower(strings.TrimSpace(s))); c {
	case ContextIndex, ContextDetail, ContextCreate, ContextUpdate, ContextAttach, ContextUpdateAttached:
		return c
	default:
		return ContextDetail
	}
}

// Principal is whoever is acting on the request.
type Principal interface {
	// Can reports whether the principal holds ability on the given model type.
	Can(ability, model string) bool
}

// Request carries what field authorization needs to know about the current
// HTTP request.
type Request struct {
	Context   Context
	Principal Principal
	Resource  string // resource key from the URL
	Model     string // model type behind the resource, used in ability checks
}

// IsCreateOrAttach reports whether the request creates or attaches a record.
func (r Request) IsCreateOrAttach() bool {
	return r.Context == ContextCreate || r.Context == ContextAttach
}

// IsUpdateOrUpdateAttached reports whether the request edits a record or an
// attached pivot row.
func (r Request) IsUpdateOrUpdateAttached() bool {
	return r.Context == ContextUpdate || r.Context == ContextUpdateAttached
}

// Can checks ability against the request's principal. A nil principal is
// treated as anonymous.
func (r Request) Can(ability, model string) bool {
	if r.Principal == nil {
		return false
	}
	return r.Principal.Can(ability, model)
}

// Anonymous denies every ability.
var Anonymous Principal = anonymous{}

type anonymous struct{}

func (anonymous) Can(string, string) bool { return false }
