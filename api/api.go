// Package api serves the engine commands over HTTP.
package api

import (
	"github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/model"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	svc    *game.Service
	logger *zap.Logger
}

// New returns a fiber app with every route mounted.
func New(svc *game.Service, logger *zap.Logger) *fiber.App {
	if logger == nil {
		logger = zap.L()
	}
	app := fiber.New(fiber.Config{
		AppName:               "battleship",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})
	SetupRoutes(app, &Handler{svc: svc, logger: logger})
	return app
}

func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	games := app.Group("/games", PlayerContext(false))
	games.Get("/", h.ListGames)
	games.Get("/:id", h.GetGame)
	games.Get("/:id/shots", h.ListShots)
	games.Get("/:id/view", h.View)

	games.Post("/", RequirePlayer(), h.CreateGame)
	games.Post("/:id/join", RequirePlayer(), h.JoinGame)
	games.Post("/:id/fleet", RequirePlayer(), h.SubmitFleet)
	games.Get("/:id/fleet", RequirePlayer(), h.GetFleet)
	games.Post("/:id/shots", RequirePlayer(), h.FireShot)
}

type createGameRequest struct {
	Name string `json:"name"`
}

type fleetRequest struct {
	Ships []model.Ship `json:"ships"`
}

type shotRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (h *Handler) ListGames(c *fiber.Ctx) error {
	games, err := h.svc.ListGames(c.UserContext())
	if err != nil {
		return err
	}
	if games == nil {
		games = []model.Game{}
	}
	return c.JSON(games)
}

func (h *Handler) GetGame(c *fiber.Ctx) error {
	g, err := h.svc.GetGame(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(g)
}

func (h *Handler) CreateGame(c *fiber.Ctx) error {
	var req createGameRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidInput("invalid request body: " + err.Error())
		}
	}
	g, err := h.svc.CreateGame(c.UserContext(), playerFrom(c), req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(g)
}

func (h *Handler) JoinGame(c *fiber.Ctx) error {
	g, err := h.svc.JoinGame(c.UserContext(), c.Params("id"), playerFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(g)
}

func (h *Handler) SubmitFleet(c *fiber.Ctx) error {
	var req fleetRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("invalid fleet: " + err.Error())
	}
	fleet, err := h.svc.SubmitFleet(c.UserContext(), c.Params("id"), playerFrom(c), req.Ships)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fleet)
}

// GetFleet returns the caller's fleet, or with ?owner= what the caller may
// see of another player's fleet.
func (h *Handler) GetFleet(c *fiber.Ctx) error {
	fleet, err := h.svc.GetFleet(c.UserContext(), c.Params("id"), playerFrom(c), c.Query("owner"))
	if err != nil {
		return err
	}
	if fleet == nil {
		fleet = []model.Ship{}
	}
	return c.JSON(fleet)
}

func (h *Handler) FireShot(c *fiber.Ctx) error {
	var req shotRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("invalid shot: " + err.Error())
	}
	if req.X == nil || req.Y == nil {
		return invalidInput("x and y are required")
	}
	shot, err := h.svc.FireShot(c.UserContext(), c.Params("id"), playerFrom(c), *req.X, *req.Y)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(shot)
}

func (h *Handler) ListShots(c *fiber.Ctx) error {
	shots, err := h.svc.ListShots(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if shots == nil {
		shots = []model.Shot{}
	}
	return c.JSON(shots)
}

// View returns the caller's filtered view, or the spectator view without X-Player.
func (h *Handler) View(c *fiber.Ctx) error {
	v, err := h.svc.View(c.UserContext(), c.Params("id"), playerFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(v)
}
