package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidyavichar/handlers"
	"vidyavichar/metrics"
	"vidyavichar/middleware"
)

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	classHandler *handlers.ClassHandler,
	questionHandler *handlers.QuestionHandler,
	resolver middleware.PrincipalResolver,
) {
	router.Use(middleware.Metrics())

	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		protected := api.Group("/")
		protected.Use(middleware.Auth(resolver))
		{
			protected.GET("/auth/profile", authHandler.GetProfile)
			protected.POST("/auth/logout", authHandler.Logout)

			classes := protected.Group("/classes")
			{
				classes.GET("", classHandler.ListClasses)
				classes.POST("", classHandler.CreateClass)
				classes.GET("/my-classes", classHandler.ListMyClasses)
				classes.GET("/:id", classHandler.GetClass)
				classes.PUT("/:id", classHandler.UpdateClass)
				classes.DELETE("/:id", classHandler.DeactivateClass)
			}

			questions := protected.Group("/questions")
			{
				questions.GET("", questionHandler.ListQuestions)
				questions.POST("", questionHandler.CreateQuestion)
				questions.GET("/stats/:classId", questionHandler.GetClassQuestionStats)
				questions.POST("/clear/:classId", questionHandler.ClearClassQuestions)
				questions.PUT("/:id", questionHandler.UpdateQuestion)
				questions.DELETE("/:id", questionHandler.DeleteQuestion)
			}
		}
	}

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
