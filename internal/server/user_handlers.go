package server

import (
	"warbler/internal/service"
	"warbler/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /users?q=
func (s *Server) ListUsers(c *fiber.Ctx) error {
	users, err := s.userService.SearchUsers(c.UserContext(), c.Query("q"))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return s.render(c, fiber.StatusOK, fiber.Map{"users": users, "q": c.Query("q")})
}

// ShowUser handles GET /users/:id
func (s *Server) ShowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.GetProfile(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return s.render(c, fiber.StatusOK, fiber.Map{"profile": profile})
}

// ShowFollowing handles GET /users/:id/following
func (s *Server) ShowFollowing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	following, err := s.graphService.Following(c.UserContext(), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return s.render(c, fiber.StatusOK, fiber.Map{"user": user, "following": following})
}

// ShowFollowers handles GET /users/:id/followers
func (s *Server) ShowFollowers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	followers, err := s.graphService.Followers(c.UserContext(), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return s.render(c, fiber.StatusOK, fiber.Map{"user": user, "followers": followers})
}

// ShowLikes handles GET /users/:id/likes
func (s *Server) ShowLikes(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	likes, err := s.graphService.LikedMessages(c.UserContext(), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return s.render(c, fiber.StatusOK, fiber.Map{"user": user, "likes": likes})
}

// Follow handles POST /users/follow/:id
func (s *Server) Follow(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	me := currentUserID(c)
	if err := s.graphService.Follow(c.UserContext(), me, id); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Redirect(userPath(me, "/following"), fiber.StatusFound)
}

// StopFollowing handles POST /users/stop-following/:id
func (s *Server) StopFollowing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	me := currentUserID(c)
	if err := s.graphService.Unfollow(c.UserContext(), me, id); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Redirect(userPath(me, "/following"), fiber.StatusFound)
}

// EditProfilePage handles GET /users/profile
func (s *Server) EditProfilePage(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return s.render(c, fiber.StatusOK, fiber.Map{"form": "profile", "user": user})
}

// UpdateProfile handles POST /users/profile. The current password must be supplied.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var form validation.ProfileForm
	if err := s.bindForm(c, "profile", &form); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:         currentUserID(c),
		Username:       form.Username,
		Email:          form.Email,
		ImageURL:       form.ImageURL,
		HeaderImageURL: form.HeaderImageURL,
		Bio:            form.Bio,
		Location:       form.Location,
		Password:       form.Password,
	})
	if err != nil {
		return s.formError(c, "profile", err)
	}

	// The session carries the username, so a rename needs a fresh token.
	if user.Username != currentUsername(c) {
		s.endSession(c)
		if err := s.startSession(c, user); err != nil {
			return err
		}
	}
	return c.Redirect(userPath(user.ID, ""), fiber.StatusFound)
}

// DeleteAccount handles POST /users/delete
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	if err := s.userService.DeleteUser(c.UserContext(), currentUserID(c)); err != nil {
		return s.mapServiceError(c, err)
	}
	s.endSession(c)
	return c.Redirect("/signup", fiber.StatusFound)
}
