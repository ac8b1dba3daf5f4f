package server

import "github.com/gofiber/fiber/v2"

// GetUserShares handles GET /users/:id/shares
func (s *Server) GetUserShares(c *fiber.Ctx) error {
	views, err := s.shares.ListShares(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(views)
}

// GetUserLikes handles GET /users/:id/likes
func (s *Server) GetUserLikes(c *fiber.Ctx) error {
	views, err := s.likes.ListLiked(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(views)
}
