package http

import (
	"errors"
	"fmt"

	pkg "github.com/plaza-social/plaza/pkg/internal"
	"github.com/plaza-social/plaza/pkg/internal/http/api"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

type App struct {
	app *fiber.App
}

func NewServer(deps api.Dependencies) *App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		EnableIPValidation:    true,
		ServerHeader:          "Plaza",
		AppName:               "Plaza v" + pkg.AppVersion,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             2 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	api.MapAPIs(app, "/api", deps)

	return &App{app: app}
}

func (v *App) Listen() {
	if err := v.app.Listen(fmt.Sprintf("%s:%d", viper.GetString("bind.host"), viper.GetInt("bind.port"))); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when starting http server.")
	}
}
