package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hotvault/hotvault-backend/config"
	"github.com/hotvault/hotvault-backend/internal/app/controller"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/hotvault/hotvault-backend/internal/middleware"
	"github.com/rs/cors"
)

type Router struct {
	cartController     *controller.CartController
	hotwheelController *controller.HotwheelController
	config             *config.Config
}

func NewRouter(
	cartController *controller.CartController,
	hotwheelController *controller.HotwheelController,
	cfg *config.Config,
) *Router {
	return &Router{
		cartController:     cartController,
		hotwheelController: hotwheelController,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.config.Server.GinMode != "" {
		gin.SetMode(r.config.Server.GinMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "HotVault API is running",
		})
	}
	router.GET("/", health)
	router.GET("/health", health)

	api := router.Group("/api")
	{
		carts := api.Group("/carts")
		{
			carts.POST("", r.cartController.CreateCart)
			carts.GET("", r.cartController.ListCarts)
			carts.GET("/open/:userId", r.cartController.GetOpenCart)
			carts.GET("/:id", r.cartController.GetCart)
			carts.PUT("/:id", r.cartController.ReplaceCart)
			carts.DELETE("/:id", r.cartController.DeleteCart)

			carts.POST("/:id/items", r.cartController.AddItem)
			carts.PUT("/:id/items/:productId", r.cartController.UpdateItem)
			carts.DELETE("/:id/items/:productId", r.cartController.RemoveItem)
			carts.POST("/:id/checkout", r.cartController.Checkout)
		}

		hotwheels := api.Group("/hotwheels")
		{
			hotwheels.POST("", r.hotwheelController.CreateHotwheel)
			hotwheels.GET("", r.hotwheelController.ListHotwheels)
			hotwheels.GET("/:id", r.hotwheelController.GetHotwheel)
			hotwheels.PUT("/:id", r.hotwheelController.UpdateHotwheel)
			hotwheels.DELETE("/:id", r.hotwheelController.DeleteHotwheel)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		apperrors.NotFound(c, apperrors.RouteNotFound, "Route not found")
	})

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	handler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Content-Length", "Accept-Encoding", "Accept", "Origin", "Cache-Control", "X-Requested-With", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	return func(c *gin.Context) {
		handler.HandlerFunc(c.Writer, c.Request)

		// answer preflight requests without routing them
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
