package main

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/propertiq/internal/adapter/fsm"
	"github.com/neomorfeo/propertiq/internal/adapter/sqlite"
	"github.com/neomorfeo/propertiq/internal/app"
	"github.com/neomorfeo/propertiq/internal/domain"

	handler "github.com/neomorfeo/propertiq/internal/adapter/http"
)

const (
	serviceName    = "propertiq"
	serviceVersion = "0.1.0"
)

// services are the application entry points shared by the API and the CLI.
type services struct {
	interventions *app.InterventionService
	composite     *app.CompositeService
}

// newServices wires the application layer on top of store. interventions
// replaces the store's own intervention repository, e.g. with a tracing
// decorator.
func newServices(store *sqlite.Store, interventions domain.InterventionRepository, publisher domain.EventPublisher, sender domain.InvitationSender) services {
	if interventions == nil {
		interventions = store.Interventions()
	}

	ivSvc := app.NewInterventionService(app.InterventionDeps{
		Interventions: interventions,
		Assignments:   store.Assignments(),
		Lots:          store.Lots(),
		Buildings:     store.Buildings(),
		Users:         store.Users(),
		Contacts:      store.Contacts(),
		Publisher:     publisher,
		Validator:     fsm.New(),
	})

	return services{
		interventions: ivSvc,
		composite: app.NewCompositeService(app.CompositeDeps{
			Users:         app.NewUserService(store.Users()),
			Teams:         app.NewTeamService(store.Teams(), store.Users()),
			Buildings:     app.NewBuildingService(store.Buildings(), store.Teams()),
			Lots:          app.NewLotService(store.Lots(), store.Buildings()),
			Contacts:      app.NewContactService(store.Contacts(), store.Users()),
			Interventions: ivSvc,
			Invitations:   sender,
		}),
	}
}

// newRouter mounts the API on a chi router with request tracing.
func newRouter(svc services) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig(serviceName, serviceVersion))
	handler.Register(api, svc.interventions)
	handler.RegisterProperties(api, svc.composite)

	return router
}
