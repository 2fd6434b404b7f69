package api

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"tourbook/cmd/middleware"
	"tourbook/internal/gallery"
	"tourbook/internal/service"
)

type Routers struct {
	Service    service.Service
	Auth       middleware.Authorizer
	Log        *zerolog.Logger
	Mode       string
	UploadsDir string
	StaticDir  string
}

func NewRouters(r *Routers) *ginext.Engine {
	mode := r.Mode
	if mode == "" {
		mode = "release"
	}
	app := ginext.New(mode)

	app.Use(gin.Recovery())
	app.Use(middleware.LoggingMiddleware(r.Log))
	app.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", service.IdempotencyHeader},
	}))
	admin := middleware.AdminAuth(r.Auth, r.Log)

	app.GET("/health", r.Service.Health)

	apiGroup := app.Group("/api")

	apiGroup.POST("/auth/verify", r.Service.Login)

	apiGroup.GET("/events", r.Service.ListEvents)
	apiGroup.GET("/events/:id", r.Service.GetEvent)
	apiGroup.POST("/events", admin, r.Service.CreateEvent)
	apiGroup.PUT("/events/:id", admin, r.Service.UpdateEvent)
	apiGroup.DELETE("/events/:id", admin, r.Service.DeleteEvent)
	apiGroup.POST("/events/upload", admin, r.Service.UploadEventCover)

	apiGroup.GET("/photos", r.Service.ListPhotos)
	apiGroup.POST("/photos", admin, r.Service.UploadPhoto)
	apiGroup.DELETE("/photos", admin, r.Service.DeletePhoto)

	apiGroup.POST("/payment/verify", r.Service.VerifyCard)
	apiGroup.POST("/payment/charge", r.Service.ChargeCard)
	apiGroup.POST("/payment/link", admin, r.Service.GeneratePaymentLink)

	apiGroup.POST("/registrations", r.Service.CreateRegistration)
	apiGroup.POST("/registrations/checkout", r.Service.Checkout)
	apiGroup.GET("/registrations/:id", admin, r.Service.GetRegistration)

	if r.UploadsDir != "" {
		app.Static(gallery.PublicPrefix, r.UploadsDir)
	}
	if r.StaticDir != "" {
		if _, err := os.Stat(r.StaticDir); err == nil {
			app.NoRoute(func(c *ginext.Context) {
				c.File(r.StaticDir + "/index.html")
			})
			app.Static("/assets", r.StaticDir+"/assets")
		} else {
			r.Log.Warn().Str("dir", r.StaticDir).Msg("static frontend directory not found, skipping")
		}
	}

	return app
}
