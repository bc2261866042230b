package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	PlayerHeader = "X-Player"

	playerKey = "player"
)

// PlayerContext puts the X-Player header into the request locals. There is no
// authentication: the header is the caller's claimed player name.
func PlayerContext(required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		player := strings.TrimSpace(c.Get(PlayerHeader))
		if required && player == "" {
			return invalidInput("missing " + PlayerHeader + " header")
		}
		c.Locals(playerKey, player)
		return c.Next()
	}
}

// RequirePlayer rejects requests without a player name.
func RequirePlayer() fiber.Handler {
	return PlayerContext(true)
}

func playerFrom(c *fiber.Ctx) string {
	p, _ := c.Locals(playerKey).(string)
	return p
}
