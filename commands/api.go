package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Lord-Y/ordinator"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// newAPI will build the admin api server config
func newAPI(logger *zerolog.Logger, port int, coordinator *ordinator.Coordinator, ready func() bool) *api {
	a := &api{
		logger:      logger,
		coordinator: coordinator,
		ready:       ready,
	}
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.newRouters(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// newRouters will return the api router
func (a *api) newRouters() *gin.Engine {
	gin.DisableConsoleColor()
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestid.New())
	router.Use(gin.Recovery())

	router.GET("/healthz", a.healthz)
	router.GET("/readyz", a.readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if a.coordinator != nil {
		v1 := router.Group("/api/v1")
		{
			v1.GET("/members", a.fetchMembers)
			v1.GET("/assignments", a.fetchAssignments)
			v1.GET("/assignments/:unit", a.fetchAssignment)
			v1.POST("/units", a.createUnits)
		}
	}
	return router
}

// start will start the api server in background.
// Startup errors are sent to errc
func (a *api) start(errc chan<- error) {
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("startup api server failed: %w", err)
		}
	}()
	a.logger.Info().Msgf("Starting api server at %s", a.server.Addr)
}

// stop will stop the api server
func (a *api) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("API server shutted down abruptly")
	}
}
