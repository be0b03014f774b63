package providers

import (
	"freedomwall/internal/structures"
	"net/http"
)

type RouterProviderInterface interface {
	Get(path string, handler http.Handler)
	Post(path string, handler http.Handler)
	GetRoutes() []structures.Route
	Mux() *http.ServeMux
}

type RouterProvider struct {
	routes []structures.Route
}

func (rp *RouterProvider) handle(method, path string, handler http.Handler) {
	rp.routes = append(rp.routes, structures.Route{Method: method, Path: path, Handler: handler})
}

func (rp *RouterProvider) Get(path string, handler http.Handler) {
	rp.handle(http.MethodGet, path, handler)
}

func (rp *RouterProvider) Post(path string, handler http.Handler) {
	rp.handle(http.MethodPost, path, handler)
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}

// Mux registers every route by its method pattern. A path served for one
// method answers 405 for the others; path values are read with r.PathValue.
func (rp *RouterProvider) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	for _, route := range rp.routes {
		mux.Handle(route.Pattern(), route.Handler)
	}
	return mux
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{}
}
