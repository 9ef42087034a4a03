package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/plaza-social/plaza/pkg/internal/models"
	"github.com/plaza-social/plaza/pkg/internal/services"
	"github.com/plaza-social/plaza/pkg/internal/stores"
)

func getPost(c *fiber.Ctx) error {
	item, deferred, err := deps.Feed.GetPostDetail(c.Context(), c.Params("postId"), viewerID(c))
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "post not found")
		}
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}

	if err := c.JSON(item); err != nil {
		return err
	}
	services.Dispatch(deferred)
	return nil
}

func createPost(c *fiber.Ctx) error {
	viewer := viewerID(c)
	if len(viewer) == 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "posting requires a viewer")
	}

	var item models.Post
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	item.AuthorID = viewer

	item, deferred, err := deps.Posts.New(c.Context(), item)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := c.JSON(item); err != nil {
		return err
	}
	services.Dispatch(deferred)
	return nil
}

func editPost(c *fiber.Ctx) error {
	viewer := viewerID(c)
	if len(viewer) == 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "editing requires a viewer")
	}

	var item models.Post
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	item.ID = c.Params("postId")
	item.AuthorID = viewer

	item, err := deps.Posts.Edit(c.Context(), item)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "post not found")
		}
		if errors.Is(err, services.ErrNotAuthor) {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(item)
}

func deletePost(c *fiber.Ctx) error {
	viewer := viewerID(c)
	if len(viewer) == 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "deleting requires a viewer")
	}

	if err := deps.Posts.Delete(c.Context(), c.Params("postId"), viewer); err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "post not found")
		}
		if errors.Is(err, services.ErrNotAuthor) {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func pinPost(c *fiber.Ctx) error {
	viewer := viewerID(c)
	if len(viewer) == 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "pinning requires a viewer")
	}

	pinned, err := deps.Posts.Pin(c.Context(), c.Params("postId"), viewer)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "post not found")
		}
		if errors.Is(err, services.ErrNotAuthor) {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"is_pinned": pinned})
}
