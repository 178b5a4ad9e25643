package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// DefaultAPIVersion is the version segment routes are served under
const DefaultAPIVersion = "v1"

// BasePath returns the API prefix for version, e.g. "/api/v1"
func BasePath(version string) string {
	return "/api/" + version
}

// RouteRegistrar attaches a set of routes to a gin group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them under the versioned API prefix
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption customises a Router
type RouterOption func(*Router)

// WithAPIVersion replaces the version segment of the API prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		if version != "" {
			r.apiVersion = version
		}
	}
}

// NewRouter returns a Router serving under /api/v1 unless overridden
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: DefaultAPIVersion}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues registrar until Setup is called
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every queued registrar in registration order
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath())
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// BasePath returns the versioned API prefix of this router
func (r *Router) BasePath() string {
	return BasePath(r.apiVersion)
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// DomainGroup is a named bundle of routes sharing a prefix and middleware.
// Nothing touches gin until RegisterRoutes runs.
type DomainGroup struct {
	name     string
	prefix   string
	before   []gin.HandlerFunc
	routes   []route
	children []*DomainGroup
}

// NewDomainGroup returns an empty group mounted at prefix
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use appends middleware that runs before every route of the group,
// including routes of nested groups
func (dg *DomainGroup) Use(handlers ...gin.HandlerFunc) *DomainGroup {
	dg.before = append(dg.before, handlers...)
	return dg
}

// Handle adds a route for an arbitrary method
func (dg *DomainGroup) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, route{method: method, path: relativePath, handlers: handlers})
	return dg
}

func (dg *DomainGroup) GET(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, relativePath, handlers...)
}

func (dg *DomainGroup) POST(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, relativePath, handlers...)
}

func (dg *DomainGroup) PUT(relativePath string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, relativePath, handlers...)
}

// Group nests a child group below this one and returns the child
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	dg.children = append(dg.children, child)
	return child
}

// RegisterRoutes mounts the group and its children on rg
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix, dg.before...)
	for _, rt := range dg.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range dg.children {
		child.RegisterRoutes(group)
	}
}

// Paths lists "METHOD /prefix/path" for every route of the group and its
// children, relative to the mount point
func (dg *DomainGroup) Paths() []string {
	var out []string
	dg.collect("/", &out)
	return out
}

func (dg *DomainGroup) collect(parent string, out *[]string) {
	base := path.Join(parent, dg.prefix)
	for _, rt := range dg.routes {
		*out = append(*out, rt.method+" "+path.Join(base, rt.path))
	}
	for _, child := range dg.children {
		child.collect(base, out)
	}
}

func (dg *DomainGroup) Name() string {
	return dg.name
}

func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}
