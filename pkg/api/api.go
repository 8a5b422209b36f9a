package api

import (
	"errors"

	"github.com/cgmlink/librelinkup/pkg/cgm"
	"github.com/cgmlink/librelinkup/pkg/linkup"
	"github.com/gofiber/fiber/v2"
)

// API denotes a REST API exposing a glucose source
type API struct {
	source cgm.Reader
	router *fiber.App
	logger cgm.Logger
}

// New instantiates a new API serving snapshots from the given source,
// executing functional options, if any
func New(source cgm.Reader, options ...func(*API)) *API {

	api := &API{
		source: source,
		router: fiber.New(fiber.Config{DisableStartupMessage: true}),
		logger: &cgm.NullLogger{},
	}

	for _, option := range options {
		option(api)
	}

	// Setup routes
	v1 := api.router.Group("/api/v1")
	v1.Get("/read", api.handleRead())
	v1.Get("/current", api.handleCurrent())

	return api
}

// WithLogger sets a logger for API events
func WithLogger(logger cgm.Logger) func(*API) {
	return func(api *API) {
		if logger != nil {
			api.logger = logger
		}
	}
}

// Listen serves the API on the given address, blocking until the underlying
// listener fails or the API is shut down
func (api *API) Listen(addr string) error {
	return api.router.Listen(addr)
}

// Shutdown gracefully shuts down the API
func (api *API) Shutdown() error {
	return api.router.Shutdown()
}

////////////////////////////////////////////////////////////////////////////////

func (api *API) handleRead() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		snapshot, err := api.source.Read()
		if err != nil {
			return api.handleError(c, err)
		}

		return c.JSON(snapshot)
	}
}

func (api *API) handleCurrent() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		snapshot, err := api.source.Read()
		if err != nil {
			return api.handleError(c, err)
		}

		return c.JSON(snapshot.Current)
	}
}

func (api *API) handleError(c *fiber.Ctx, err error) error {
	api.logger.Errorf("read failed: %s", err)

	code := fiber.StatusBadGateway
	if errors.Is(err, linkup.ErrBadCredentials) {
		code = fiber.StatusUnauthorized
	}

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
