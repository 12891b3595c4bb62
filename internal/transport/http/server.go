package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appsvc "webinfinitygen/internal/app"
	"webinfinitygen/internal/bootstrap"
	"webinfinitygen/internal/repository"
	"webinfinitygen/internal/transport/http/handler"
	"webinfinitygen/internal/transport/http/middleware"
	"webinfinitygen/internal/transport/http/response"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID(), gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	accountRepo := repository.NewAccountRepository(app.DB)
	chatRepo := repository.NewChatRepository(app.DB)
	authService := appsvc.NewAuthService(accountRepo, app.Config.Auth.JWTSecret, app.Config.JWTExpiration())
	chatService := appsvc.NewChatService(chatRepo, app.Publisher, app.Logger)
	turnService := appsvc.NewTurnService(chatService, app.Invoker, app.Blobs, app.Config.UpstreamTimeout(), app.Logger)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	turnHandler := handler.NewTurnHandler(turnService)
	eventsHandler := handler.NewEventsHandler(app.Hub)
	uploadHandler := handler.NewUploadHandler(app.Blobs)

	jwt := middleware.AuthJWT(app.Config.Auth.JWTSecret)
	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", jwt, authHandler.Me)

	usersGroup := api.Group("/users")
	usersGroup.GET("", authHandler.ListUsers)
	usersGroup.GET("/me", authHandler.Username)

	chatGroup := api.Group("/chat")
	uploadGroup := api.Group("/upload")
	if app.Config.Auth.ProtectChat {
		chatGroup.Use(jwt)
		uploadGroup.Use(jwt)
	} else {
		optionalJWT := middleware.OptionalAuthJWT(app.Config.Auth.JWTSecret)
		chatGroup.Use(optionalJWT)
		uploadGroup.Use(optionalJWT)
	}

	chatGroup.POST("/history", chatHandler.Create)
	chatGroup.POST("/history/:chatId/messages", chatHandler.AppendMessage)
	chatGroup.GET("/history/user/:userId", chatHandler.ListByOwner)
	chatGroup.GET("/history/:chatId", chatHandler.Get)
	chatGroup.PUT("/history/:chatId/title", chatHandler.Rename)
	chatGroup.DELETE("/history/:chatId", chatHandler.Delete)
	chatGroup.GET("/events/user/:userId", eventsHandler.Stream)

	turnChain := []gin.HandlerFunc{}
	if app.Limiter != nil {
		turnChain = append(turnChain, middleware.RateLimit(app.Limiter, app.Logger))
	}
	chatGroup.POST("/turns", append(turnChain, turnHandler.Submit)...)

	uploadGroup.POST("/image", uploadHandler.PutImage)
	uploadGroup.POST("/json", uploadHandler.PutJSON)
	uploadGroup.DELETE("/image/:objectName", uploadHandler.Delete)
	uploadGroup.GET("/presign/:objectName", uploadHandler.Presign)

	router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "endpoint not found")
	})
	return router
}
