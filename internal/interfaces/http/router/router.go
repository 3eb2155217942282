// Package router assembles the billing HTTP route table.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes under a parent group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars per base path and mounts them in one pass.
type Router struct {
	engine *gin.Engine
	mounts []mount
}

type mount struct {
	base       string
	registrars []RouteRegistrar
}

func NewRouter(engine *gin.Engine) *Router {
	return &Router{engine: engine}
}

// Mount queues registrars under base. An empty base mounts at the engine
// root, for paths fixed by outside callers such as /webhooks/stripe.
func (r *Router) Mount(base string, registrars ...RouteRegistrar) *Router {
	r.mounts = append(r.mounts, mount{base: base, registrars: registrars})
	return r
}

// Setup registers every queued registrar with the engine.
func (r *Router) Setup() {
	for _, m := range r.mounts {
		parent := &r.engine.RouterGroup
		if m.base != "" {
			parent = r.engine.Group(m.base)
		}
		for _, reg := range m.registrars {
			reg.RegisterRoutes(parent)
		}
	}
}

// RouteGroup is a declarative route group: a prefix, its middleware, its
// routes and nested groups. Nothing touches gin until RegisterRoutes.
type RouteGroup struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*RouteGroup
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

func NewRouteGroup(prefix string, middleware ...gin.HandlerFunc) *RouteGroup {
	return &RouteGroup{prefix: prefix, middleware: middleware}
}

func (g *RouteGroup) GET(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodGet, path, handlers)
}

func (g *RouteGroup) POST(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.handle(http.MethodPost, path, handlers)
}

func (g *RouteGroup) handle(method, path string, handlers []gin.HandlerFunc) *RouteGroup {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

// Group nests a child group that inherits g's middleware.
func (g *RouteGroup) Group(prefix string, middleware ...gin.HandlerFunc) *RouteGroup {
	child := NewRouteGroup(prefix, middleware...)
	g.children = append(g.children, child)
	return child
}

func (g *RouteGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range g.children {
		child.RegisterRoutes(group)
	}
}
