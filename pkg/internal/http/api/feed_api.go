package api

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/services"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// maxFeedLimit mirrors the request struct's validation tag.
const maxFeedLimit = 200

func getFeed(c *fiber.Ctx) error {
	request := models.FeedRequest{
		ViewerID: viewerID(c),
		Type:     c.Params("feedType"),
		Cursor:   c.Query("cursor"),
		Limit:    c.QueryInt("limit", 0),
		Filters:  parseFilters(c),
	}

	// Validation failures normalize instead of rejecting: the limit clamps to
	// the nearest valid value and the pipeline fills in the default for zero.
	if err := validate.Struct(request); err != nil {
		request.Limit = min(max(request.Limit, 0), maxFeedLimit)
	}

	result, err := deps.Feed.GetFeed(c.Context(), request)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}

	if err := c.JSON(result.Page); err != nil {
		return err
	}

	// Best-effort work runs after the response is already on the wire.
	services.Dispatch(result.Deferred)
	return nil
}

func refreshFeed(c *fiber.Ctx) error {
	viewer := viewerID(c)
	if len(viewer) == 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "refresh requires a viewer")
	}

	deps.Feed.RefreshFeed(c.Context(), viewer)
	return c.SendStatus(fiber.StatusNoContent)
}

func parseFilters(c *fiber.Ctx) *models.FeedFilters {
	filters := models.FeedFilters{
		Authors:      splitQuery(c, "authors"),
		Keywords:     splitQuery(c, "keywords"),
		Types:        splitQuery(c, "types"),
		Language:     c.Query("language"),
		SearchText:   c.Query("search"),
		Members:      splitQuery(c, "members"),
		ListSources:  splitQuery(c, "lists"),
		OwnerID:      c.Query("owner"),
		IncludeOwner: c.QueryBool("includeOwner", false),
	}

	if raw := c.Query("from"); len(raw) > 0 {
		if when, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.DateFrom = &when
		}
	}
	if raw := c.Query("to"); len(raw) > 0 {
		if when, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.DateTo = &when
		}
	}

	empty := len(filters.Authors) == 0 && len(filters.Keywords) == 0 &&
		len(filters.Types) == 0 && len(filters.Language) == 0 &&
		len(filters.SearchText) == 0 && len(filters.Members) == 0 &&
		len(filters.ListSources) == 0 && filters.DateFrom == nil && filters.DateTo == nil
	if empty {
		return nil
	}
	return &filters
}

func splitQuery(c *fiber.Ctx, key string) []string {
	raw := c.Query(key)
	if len(raw) == 0 {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); len(part) > 0 {
			out = append(out, part)
		}
	}
	return out
}
