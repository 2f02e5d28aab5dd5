package app

import (
	"errors"
	"strconv"

	"github.com/goccy/go-json"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/config"
	"github.com/shoplocal/onboarding-api/internal/controllers"
	"github.com/shoplocal/onboarding-api/internal/controllers/helpers"
	"github.com/shoplocal/onboarding-api/internal/middleware"
	"github.com/shoplocal/onboarding-api/internal/onboarding"
	"github.com/shoplocal/onboarding-api/internal/repository"
)

func App(
	settings *config.Settings,
	logger *zerolog.Logger,
	sessions repository.SessionRepository,
	validator onboarding.StepValidator,
	resolver controllers.AddressLookup,
	submitter controllers.Submitter,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return ErrorHandler(c, err, logger)
		},
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             6 * 1024 * 1024,
	})
	app.Use(middleware.HTTPMetricsMiddleware)

	app.Use(fiberrecover.New(fiberrecover.Config{
		Next:              nil,
		EnableStackTrace:  true,
		StackTraceHandler: nil,
	}))

	if settings.Environment == "local" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     "*",
			AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowCredentials: false,
		}))
	} else {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     settings.AllowedOrigins,
			AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowCredentials: true,
		}))
	}

	app.Get("/health", healthCheck)

	ctrl := controllers.NewOnboardingController(settings, logger, sessions, validator, resolver, submitter)

	jwtAuth := jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: jwtware.HS256,
			Key:    []byte(settings.SessionTokenSecret),
		},
	})

	sessionMdw := helpers.NewSessionMiddleware()

	// opening a session is the only unauthenticated operation
	app.Post("/v1/onboarding/session", ctrl.StartSession)

	sessionGroup := app.Group("/v1/onboarding/session", jwtAuth, sessionMdw)
	sessionGroup.Get("/", ctrl.GetSession)
	sessionGroup.Patch("/account", ctrl.PatchAccount)
	sessionGroup.Put("/kind", ctrl.SetKind)
	sessionGroup.Post("/businesses", ctrl.AddBusiness)
	sessionGroup.Delete("/businesses/:index", ctrl.RemoveBusiness)
	sessionGroup.Put("/businesses/cursor/:index", ctrl.SetCursor)
	sessionGroup.Patch("/businesses/current", ctrl.PatchCurrentBusiness)
	sessionGroup.Post("/businesses/current/image", ctrl.AttachImage)
	sessionGroup.Post("/steps/advance", ctrl.Advance)
	sessionGroup.Post("/steps/retreat", ctrl.Retreat)
	sessionGroup.Post("/submit", ctrl.Submit)

	return app
}

func healthCheck(c *fiber.Ctx) error {
	res := map[string]interface{}{
		"data": "Server is up and running",
	}

	err := c.JSON(res)

	if err != nil {
		return err
	}

	return nil
}

// ErrorHandler custom handler to log recovered errors using our logger and return json instead of string
func ErrorHandler(c *fiber.Ctx, err error, logger *zerolog.Logger) error {
	code := fiber.StatusInternalServerError // HTTP 500 by default

	var e *fiber.Error
	isFiberErr := errors.As(err, &e)
	if isFiberErr {
		// Override status code if fiber.Error type
		code = e.Code
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	codeStr := strconv.Itoa(code)

	if code != fiber.StatusNotFound {
		logger.Err(err).Str("httpStatusCode", codeStr).
			Str("httpMethod", c.Method()).
			Str("httpPath", c.Path()).
			Msg("caught an error from http request")
	}

	return c.Status(code).JSON(ErrorRes{
		Code:    code,
		Message: err.Error(),
	})
}

type ErrorRes struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
