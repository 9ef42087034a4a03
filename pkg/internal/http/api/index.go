package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/plaza-social/plaza/pkg/internal/services"
)

type Dependencies struct {
	Feed  *services.FeedService
	Posts *services.PostService
}

var deps Dependencies

func MapAPIs(app *fiber.App, baseURL string, in Dependencies) {
	deps = in

	api := app.Group(baseURL).Name("API")
	{
		feed := api.Group("/feed").Name("Feed API")
		{
			feed.Get("/:feedType", getFeed)
			feed.Post("/refresh", refreshFeed)
		}

		posts := api.Group("/posts").Name("Posts API")
		{
			posts.Get("/:postId", getPost)
			posts.Post("/", createPost)
			posts.Put("/:postId", editPost)
			posts.Delete("/:postId", deletePost)
			posts.Post("/:postId/pin", pinPost)
		}
	}
}

// viewerID resolves the authenticated viewer forwarded by the gateway.
// Authentication itself happens upstream; an absent header means anonymous.
func viewerID(c *fiber.Ctx) string {
	return c.Get("X-Viewer-ID")
}
