package main

import (
	"github.com/julienschmidt/httprouter"
)

// MiddlewareMap contains the middleware chains to use for
// public-facing and ops requests.
type MiddlewareMap struct {
	public *Middlewares
	ops    *Middlewares
}

// SetupRoutes enforces the api routes.
func (api *APIHandler) SetupRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	router.GET("/", m.public.Chain(api.Index))
	router.GET("/status", m.public.Chain(api.Status))

	router.POST("/books", m.public.Chain(api.CreateBook))
	router.GET("/books", m.public.Chain(api.GetAllBooks))
	router.GET("/books/:id", m.public.Chain(api.GetOneBook))
	router.PUT("/books/:id", m.public.Chain(api.UpdateBook))
	router.DELETE("/books/:id", m.public.Chain(api.DeleteOneBook))

	router.POST("/borrows/:id", m.public.Chain(api.BorrowBook))
	router.GET("/borrows/summary", m.public.Chain(api.GetBorrowSummary))

	router.GET("/ops/stats", m.ops.Chain(api.GetStatistics))
	if api.config.Server.ProfilerEnable {
		router.GET("/ops/debug/pprof/", m.ops.Chain(api.GetProfilerIndexPage))
		router.GET("/ops/debug/pprof/profile", m.ops.Chain(api.GetCPUProfile))
		router.GET("/ops/debug/pprof/trace", m.ops.Chain(api.GetTraceProfile))
	}
	return router
}
