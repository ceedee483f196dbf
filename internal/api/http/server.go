package http

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// NewApp builds the fiber app with the service's JSON codec. No write
// timeout is set because notification streams stay open.
func NewApp(appName string, readTimeout time.Duration) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               appName,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadTimeout:           readTimeout,
		IdleTimeout:           2 * time.Minute,
		DisableStartupMessage: true,
	})
}
