package models

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFoundError("Message", 7))

	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(err, CodeForbidden))
	assert.False(t, IsCode(errors.New("plain"), CodeNotFound))
}

func TestAppError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("unique violation")
	err := NewDuplicateIdentityError(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Username or email already taken: unique violation", err.Error())
	assert.Equal(t, "Message with ID 7 not found", NewNotFoundError("Message", 7).Error())
}

func TestRespondWithError_HidesInternalDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("dsn=secret")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), CodeInternal)
	assert.NotContains(t, string(body), "secret")
}
