package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-lms-registration/pkg/response"
)

type Registry struct {
	Engine      *gin.Engine
	API         *gin.RouterGroup
	middlewares []gin.HandlerFunc
	modules     []Module
	names       map[string]struct{}
}

func NewRegistry(engine *gin.Engine) *Registry {
	api := engine.Group("/api")
	return &Registry{Engine: engine, API: api, names: map[string]struct{}{}}
}

func (r *Registry) Use(mw ...gin.HandlerFunc) {
	r.middlewares = append(r.middlewares, mw...)
}

// Add queues a module for RegisterAll. Adding two modules with the same
// name is a wiring bug and panics.
func (r *Registry) Add(mod Module) {
	if _, dup := r.names[mod.Name()]; dup {
		panic(fmt.Sprintf("router: module %q registered twice", mod.Name()))
	}
	r.names[mod.Name()] = struct{}{}
	r.modules = append(r.modules, mod)
}

// Modules lists the queued module names in registration order.
func (r *Registry) Modules() []string {
	out := make([]string, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.Name())
	}
	return out
}

func (r *Registry) RegisterAll() {
	if len(r.middlewares) > 0 {
		r.API.Use(r.middlewares...)
	}
	for _, m := range r.modules {
		m.Register(r.API)
	}
	r.Engine.NoRoute(func(c *gin.Context) {
		response.Error[any](c, http.StatusNotFound, "route not found", nil)
	})
}
