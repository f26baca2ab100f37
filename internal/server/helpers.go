package server

import (
	"errors"
	"fmt"

	"warbler/internal/models"
	"warbler/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already committed the response.
// Handlers return nil when they see it so the ErrorHandler does not overwrite it.
var errResponseWritten = errors.New("response already written")

// parseID reads a positive route parameter. On failure it writes a 400 and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+param))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// render writes a JSON view with the CSRF token, pending flashes and the acting user.
func (s *Server) render(c *fiber.Ctx, status int, view fiber.Map, inline ...Flash) error {
	if view == nil {
		view = fiber.Map{}
	}
	view["csrf_token"] = csrfToken(c)
	flashes := append(takeFlashes(c), inline...)
	if flashes == nil {
		flashes = []Flash{}
	}
	view["flashes"] = flashes
	if uid := currentUserID(c); uid != 0 {
		view["current_user"] = fiber.Map{"id": uid, "username": currentUsername(c)}
	}
	return c.Status(status).JSON(view)
}

// bindForm parses and validates the request body into form.
// On failure it re-presents the named form with a 400 and returns errResponseWritten.
func (s *Server) bindForm(c *fiber.Ctx, name string, form any) error {
	if err := c.BodyParser(form); err != nil {
		_ = s.formError(c, name, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	if err := validation.Struct(form); err != nil {
		_ = s.formError(c, name, err)
		return errResponseWritten
	}
	return nil
}

// formError re-presents a form with the status matching err.
func (s *Server) formError(c *fiber.Ctx, name string, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	status := statusFor(appErr.Code)
	if status == 0 {
		return err
	}
	return s.render(c, status, fiber.Map{"form": name, "error": appErr.Message},
		Flash{Category: flashDanger, Message: appErr.Message})
}

// mapServiceError turns a service failure into the matching HTTP outcome.
func (s *Server) mapServiceError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	switch appErr.Code {
	case models.CodeForbidden, models.CodeUnauthorized:
		return denyAccess(c)
	}
	if status := statusFor(appErr.Code); status != 0 {
		return models.RespondWithError(c, status, appErr)
	}
	return err
}

func statusFor(code string) int {
	switch code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeInvalidCredentials:
		return fiber.StatusUnauthorized
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeDuplicateIdentity:
		return fiber.StatusConflict
	}
	return 0
}

func userPath(id uint, suffix string) string {
	return fmt.Sprintf("/users/%d%s", id, suffix)
}
