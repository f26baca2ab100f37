package server

import (
	"warbler/internal/service"
	"warbler/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Home handles GET /. Signed-in users get their feed; everyone else the landing view.
func (s *Server) Home(c *fiber.Ctx) error {
	me := currentUserID(c)
	if me == 0 {
		return s.render(c, fiber.StatusOK, fiber.Map{"anonymous": true})
	}
	feed, err := s.feedService.BuildFeed(c.UserContext(), me)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return s.render(c, fiber.StatusOK, fiber.Map{"anonymous": false, "messages": feed})
}

// NewMessagePage handles GET /messages/new
func (s *Server) NewMessagePage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, fiber.Map{"form": "message"})
}

// CreateMessage handles POST /messages/new
func (s *Server) CreateMessage(c *fiber.Ctx) error {
	var form validation.MessageForm
	if err := s.bindForm(c, "message", &form); err != nil {
		return nil
	}
	me := currentUserID(c)
	if _, err := s.messageService.Create(c.UserContext(), service.CreateMessageInput{UserID: me, Text: form.Text}); err != nil {
		return s.formError(c, "message", err)
	}
	return c.Redirect(userPath(me, ""), fiber.StatusFound)
}

// ShowMessage handles GET /messages/:id
func (s *Server) ShowMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	msg, err := s.messageService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return s.render(c, fiber.StatusOK, fiber.Map{"message": msg})
}

// DeleteMessage handles POST /messages/:id/delete
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	me := currentUserID(c)
	if err := s.messageService.Delete(c.UserContext(), service.DeleteMessageInput{UserID: me, MessageID: id}); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Redirect(userPath(me, ""), fiber.StatusFound)
}

// LikeMessage handles POST /messages/:id/like
func (s *Server) LikeMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	me := currentUserID(c)
	if err := s.graphService.Like(c.UserContext(), me, id); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Redirect(userPath(me, "/likes"), fiber.StatusFound)
}

// UnlikeMessage handles POST /messages/:id/unlike
func (s *Server) UnlikeMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	me := currentUserID(c)
	if err := s.graphService.Unlike(c.UserContext(), me, id); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Redirect(userPath(me, "/likes"), fiber.StatusFound)
}
