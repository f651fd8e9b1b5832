package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/skyauthor/newsroom/internal/middleware"
	"github.com/skyauthor/newsroom/internal/models"
)

// SetupRoutes configures all the routes for the application. The app must use
// middleware.ErrorHandler.
func SetupRoutes(app *fiber.App, h *Handlers, adminKey string) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger())

	// Feeds at the site root
	app.Get("/rss.xml", h.RSS)
	app.Get("/feed.xml", h.RSS)
	app.Get("/sitemap.xml", h.Sitemap)
	app.Get("/news-sitemap.xml", h.NewsSitemap)
	app.Get("/robots.txt", h.Robots)

	api := app.Group("/api/v1")
	api.Get("/health", h.HealthCheck)

	articles := api.Group("/articles")
	{
		articles.Get("", middleware.ValidateQuery[listQuery](), h.ListArticles)
		articles.Get("/:slug", h.GetArticle)
	}
	api.Get("/trending", middleware.ValidateQuery[listQuery](), h.Trending)
	api.Get("/categories", h.Categories)
	api.Get("/categories/:category", middleware.ValidateQuery[listQuery](), h.CategoryArticles)
	api.Get("/search", middleware.ValidateQuery[listQuery](), h.Search)
	api.Post("/subscribe", h.Subscribe)

	admin := api.Group("/admin", middleware.AdminOnly(adminKey))
	{
		admin.Get("/articles", middleware.ValidateQuery[listQuery](), h.AdminListArticles)
		admin.Get("/articles/:id", h.AdminGetArticle)
		admin.Post("/articles", middleware.ValidateBody[models.ArticleInput](), h.CreateArticle)
		admin.Put("/articles/:id", middleware.ValidateBody[models.ArticleInput](), h.UpdateArticle)
		admin.Patch("/articles/:id/publish", middleware.ValidateBody[publishRequest](), h.SetPublished)
		admin.Delete("/articles/:id", h.DeleteArticle)

		admin.Post("/seo-optimize", middleware.ValidateBody[optimizeRequest](), h.OptimizeSEO)
		admin.Post("/derive", middleware.ValidateBody[models.ArticleInput](), h.Derive)
		admin.Post("/index", middleware.ValidateBody[notifyRequest](), h.NotifyIndex)
		admin.Post("/revalidate", middleware.ValidateBody[slugRequest](), h.Revalidate)
		admin.Get("/stats", h.Stats)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
