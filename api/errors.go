package api

import (
	"errors"

	"github.com/COAOX/zecrey_battleship/game"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var statusByCode = map[game.Code]int{
	game.CodeNotFound:           fiber.StatusNotFound,
	game.CodeGameFull:           fiber.StatusConflict,
	game.CodeWrongPhase:         fiber.StatusConflict,
	game.CodeNotYourTurn:        fiber.StatusConflict,
	game.CodeAlreadyPlaced:      fiber.StatusConflict,
	game.CodeNoOpponent:         fiber.StatusConflict,
	game.CodeNotParticipant:     fiber.StatusForbidden,
	game.CodeInvalidComposition: fiber.StatusUnprocessableEntity,
	game.CodeOutOfBounds:        fiber.StatusUnprocessableEntity,
	game.CodeOverlap:            fiber.StatusUnprocessableEntity,
	game.CodeInvalidInput:       fiber.StatusBadRequest,
}

// StatusOf maps an engine error to its HTTP status.
func StatusOf(err error) int {
	if status, ok := statusByCode[game.CodeOf(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := game.CodeInternal
			if fe.Code < fiber.StatusInternalServerError {
				code = game.CodeInvalidInput
			}
			return c.Status(fe.Code).JSON(fiber.Map{"code": code, "error": fe.Message})
		}

		status := StatusOf(err)
		msg := err.Error()
		if status == fiber.StatusInternalServerError {
			logger.Error("request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
			msg = "internal error"
		}
		return c.Status(status).JSON(fiber.Map{"code": game.CodeOf(err), "error": msg})
	}
}

func invalidInput(msg string) error {
	return &game.Error{Code: game.CodeInvalidInput, Message: msg}
}
