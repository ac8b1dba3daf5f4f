package server

import (
	"snapfeed/internal/models"
	"snapfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetSnaps handles GET /snaps
func (s *Server) GetSnaps(c *fiber.Ctx) error {
	filter, err := parseListFilter(c)
	if err != nil {
		return respondError(c, err)
	}

	views, err := s.feed.List(c.UserContext(), filter, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(views)
}

// GetSnap handles GET /snaps/:id
func (s *Server) GetSnap(c *fiber.Ctx) error {
	id := c.Params("id")
	view, err := s.feed.GetOne(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	if view == nil {
		return respondError(c, models.NewNotFoundError("Snap", id))
	}
	return c.JSON(view)
}

// CreateSnap handles POST /snaps
func (s *Server) CreateSnap(c *fiber.Ctx) error {
	var req snapRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	if err := validateContent(req.Content); err != nil {
		return respondError(c, err)
	}

	view, err := s.feed.Create(c.UserContext(), service.CreatePostInput{
		UserID:    req.UserID,
		Username:  req.Username,
		Content:   req.Content,
		IsPrivate: req.IsPrivate,
		Medias:    req.medias(),
		Mentions:  req.mentions(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// EditSnap handles PUT /snaps/:id
func (s *Server) EditSnap(c *fiber.Ctx) error {
	var req snapRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	if err := validateContent(req.Content); err != nil {
		return respondError(c, err)
	}

	ref, err := s.feed.Edit(c.UserContext(), c.Params("id"), service.EditPostInput{
		Content:   req.Content,
		IsPrivate: req.IsPrivate,
		Medias:    req.medias(),
		Mentions:  req.mentions(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ref)
}

// BlockSnap handles PUT /snaps/block/:id
func (s *Server) BlockSnap(c *fiber.Ctx) error {
	ref, err := s.feed.Block(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ref)
}

// DeleteSnap handles DELETE /snaps/:id
func (s *Server) DeleteSnap(c *fiber.Ctx) error {
	deleted, err := s.feed.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(deleted)
}

// LikeSnap handles PUT /snaps/:id/like
func (s *Server) LikeSnap(c *fiber.Ctx) error {
	viewer, err := parseViewer(c)
	if err != nil {
		return respondError(c, err)
	}
	state, err := s.likes.Like(c.UserContext(), c.Params("id"), viewer.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// UnlikeSnap handles PUT /snaps/:id/dislike
func (s *Server) UnlikeSnap(c *fiber.Ctx) error {
	viewer, err := parseViewer(c)
	if err != nil {
		return respondError(c, err)
	}
	state, err := s.likes.Unlike(c.UserContext(), c.Params("id"), viewer.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// ShareSnap handles POST /snaps/:id/share
func (s *Server) ShareSnap(c *fiber.Ctx) error {
	viewer, err := parseViewer(c)
	if err != nil {
		return respondError(c, err)
	}
	view, err := s.shares.Share(c.UserContext(), c.Params("id"), viewer.UserID, viewer.Username)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// UnshareSnap handles DELETE /snaps/:id/share
func (s *Server) UnshareSnap(c *fiber.Ctx) error {
	viewer, err := parseViewer(c)
	if err != nil {
		return respondError(c, err)
	}
	removed, err := s.shares.Unshare(c.UserContext(), c.Params("id"), viewer.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "removed": removed})
}

// GetAnswers handles GET /snaps/:id/answers
func (s *Server) GetAnswers(c *fiber.Ctx) error {
	views, err := s.replies.ListReplies(c.UserContext(), c.Params("id"), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(views)
}

// CreateAnswer handles POST /snaps/:id/answers
func (s *Server) CreateAnswer(c *fiber.Ctx) error {
	var req snapRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	if err := validateContent(req.Content); err != nil {
		return respondError(c, err)
	}

	view, err := s.replies.Reply(c.UserContext(), c.Params("id"), service.CreatePostInput{
		UserID:    req.UserID,
		Username:  req.Username,
		Content:   req.Content,
		IsPrivate: req.IsPrivate,
		Medias:    req.medias(),
		Mentions:  req.mentions(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}
