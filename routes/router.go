package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bumisarana/absensi-client/config"
	"github.com/bumisarana/absensi-client/controllers"
	"github.com/bumisarana/absensi-client/middleware"
	"github.com/bumisarana/absensi-client/utils"
)

// SetupRouter wires routes, middlewares, and controllers for the local
// browser gateway.
func SetupRouter(cfg config.AppConfig, authCtl *controllers.AuthController, dashCtl *controllers.DashboardController, secret []byte) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(utils.GinZap())
	r.Use(utils.GinRecovery())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// Credentialed requests cannot be combined with a wildcard origin.
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")
	r.GET("/", func(c *gin.Context) {
		c.File("./static/index.html")
	})

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	authGroup.POST("/generate-otp", authCtl.GenerateOTP)
	authGroup.POST("/login", authCtl.Login)
	authGroup.GET("/session", authCtl.Session)
	authGroup.POST("/logout", middleware.GatewayAuth(secret), authCtl.Logout)

	dashboard := api.Group("/dashboard")
	dashboard.Use(middleware.GatewayAuth(secret))
	dashboard.GET("", dashCtl.Snapshot)
	dashboard.POST("/location", dashCtl.UpdateLocation)
	dashboard.POST("/checkin", dashCtl.CheckIn)
	dashboard.POST("/checkout", dashCtl.CheckOut)
	dashboard.GET("/history", dashCtl.History)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.Status(http.StatusOK)
		ctx.File("./static/index.html")
	})

	return r
}
