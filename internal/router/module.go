package router

import "github.com/gin-gonic/gin"

// Module mounts one feature's routes under /api. Names must be unique
// within a registry.
type Module interface {
	Name() string
	Register(rg *gin.RouterGroup)
}
