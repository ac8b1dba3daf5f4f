package server

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"snapfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

const maxContentLength = 280

// mediaRequest and mentionRequest mirror the JSON shapes of models.Media and
// models.Mention accepted on writes.
type mediaRequest struct {
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
}

type mentionRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// snapRequest is the body of create, edit and reply requests.
type snapRequest struct {
	UserID    string           `json:"userId"`
	Username  string           `json:"username"`
	Content   string           `json:"content"`
	IsPrivate bool             `json:"isPrivate"`
	Medias    []mediaRequest   `json:"medias"`
	Mentions  []mentionRequest `json:"mentions"`
}

// viewerRequest is the optional body of like, unlike, share and unshare.
type viewerRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (r snapRequest) medias() []models.Media {
	out := make([]models.Media, 0, len(r.Medias))
	for _, m := range r.Medias {
		out = append(out, models.Media{Path: m.Path, MimeType: m.MimeType})
	}
	return out
}

func (r snapRequest) mentions() []models.Mention {
	out := make([]models.Mention, 0, len(r.Mentions))
	for _, m := range r.Mentions {
		out = append(out, models.Mention{UserID: m.UserID, Username: m.Username})
	}
	return out
}

// validateContent enforces the 1 to 280 character bound on snap text.
func validateContent(content string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(content))
	if n == 0 {
		return models.NewValidationError("content is required")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return models.NewValidationError("content must be at most 280 characters")
	}
	return nil
}

// viewerID returns the caller identity of a read request.
func viewerID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get("X-User-ID"))
}

// parseViewer reads the caller identity of a viewer action from the body,
// falling back to the X-User-ID header.
func parseViewer(c *fiber.Ctx) (viewerRequest, error) {
	var req viewerRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return req, models.NewValidationError("Invalid request body")
		}
	}
	if req.UserID == "" {
		req.UserID = viewerID(c)
	}
	if req.UserID == "" {
		return req, models.NewValidationError("userId is required")
	}
	return req, nil
}

// parseListFilter reads listing filters and pagination from the query string.
// dateFrom and dateTo are accepted as aliases of createdAfter and createdBefore.
func parseListFilter(c *fiber.Ctx) (models.ListFilter, error) {
	filter := models.ListFilter{
		AuthorName: c.Query("username"),
		Hashtag:    c.Query("hashtag"),
		Content:    c.Query("content"),
	}

	var err error
	if filter.Limit, err = queryCount(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryCount(c, "offset"); err != nil {
		return filter, err
	}

	bounds := []struct {
		params []string
		dst    **time.Time
	}{
		{[]string{"createdAfter", "dateFrom"}, &filter.CreatedAfter},
		{[]string{"createdBefore", "dateTo"}, &filter.CreatedBefore},
	}
	for _, b := range bounds {
		for _, param := range b.params {
			raw := c.Query(param)
			if raw == "" {
				continue
			}
			t, err := parseTimestamp(raw)
			if err != nil {
				return filter, models.NewValidationError(param + " must be an RFC 3339 timestamp or a YYYY-MM-DD date")
			}
			*b.dst = &t
			break
		}
	}
	return filter, nil
}

// queryCount parses a non-negative integer query parameter. Absent means 0.
func queryCount(c *fiber.Ctx, param string) (int, error) {
	raw := c.Query(param)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, models.NewValidationError(param + " must be a non-negative integer")
	}
	return n, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

// respondError renders err with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}
