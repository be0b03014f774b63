package structures

import "net/http"

type Route struct {
	Method  string
	Path    string
	Handler http.Handler
}

// Pattern is the ServeMux pattern for the route, e.g. "GET /collections/{collection}/records".
func (r Route) Pattern() string {
	return r.Method + " " + r.Path
}
