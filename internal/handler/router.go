package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/manish-shre/KKMS/internal/asset"
	"github.com/manish-shre/KKMS/internal/metrics"
	"github.com/manish-shre/KKMS/internal/middleware"
	"github.com/manish-shre/KKMS/internal/resource"
	"github.com/manish-shre/KKMS/internal/service"
	"github.com/manish-shre/KKMS/internal/toast"
)

// Deps is everything the HTTP surface is built from. Catalog may be nil.
type Deps struct {
	AllowOrigins []string
	Auth         *service.AuthService
	Profiles     *service.ProfileService
	Messages     *service.MessageService
	Dashboard    *service.DashboardService
	Catalog      *service.CatalogSync
	Members      *resource.Members
	Events       *resource.Events
	Mailboxes    *resource.Mailboxes
	Toasts       *toast.Hub
	Disk         *asset.Disk
}

func NewRouter(d Deps) *gin.Engine {
	authH := NewAuthHandler(d.Auth, d.Mailboxes)
	memberH := NewMemberHandler(d.Members)
	eventH := NewEventHandler(d.Events)
	notifyH := NewNotificationHandler(d.Mailboxes)
	messageH := NewMessageHandler(d.Messages)
	profileH := NewProfileHandler(d.Profiles)
	dashH := NewDashboardHandler(d.Dashboard)
	catalogH := NewCatalogHandler(d.Catalog, d.Members, d.Events)
	publicH := NewPublicHandler(d.Members, d.Events, d.Disk)
	toastH := NewToastHandler(d.Toasts)

	origins := d.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-New-Token"},
		AllowCredentials: true,
	}))
	r.MaxMultipartMemory = maxUpload

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/storage/v1/object/public/:bucket/*path", publicH.Object)

	r.POST("/api/login", authH.Login)
	r.POST("/api/contact", messageH.Contact)
	pub := r.Group("/api/public")
	pub.GET("/home", publicH.Home)
	pub.GET("/members", publicH.Members)
	pub.GET("/events", publicH.Events)

	api := r.Group("/api", middleware.JWTAuth(d.Auth))
	api.POST("/logout", authH.Logout)
	api.PUT("/password", authH.Password)
	api.GET("/profile", profileH.Get)
	api.PUT("/profile", profileH.Update)

	api.GET("/members", memberH.List)
	api.POST("/members", memberH.Create)
	api.POST("/members/refresh", memberH.Refresh)
	api.PUT("/members/:id", memberH.Update)
	api.DELETE("/members/:id", memberH.Delete)

	api.GET("/events", eventH.List)
	api.POST("/events", eventH.Create)
	api.POST("/events/refresh", eventH.Refresh)
	api.PUT("/events/:id", eventH.Update)
	api.DELETE("/events/:id", eventH.Delete)

	api.GET("/messages", messageH.List)
	api.GET("/dashboard", dashH.Stats)

	api.GET("/notifications", notifyH.List)
	api.POST("/notifications/:id/read", notifyH.Read)
	api.POST("/notifications/read-all", notifyH.ReadAll)
	api.GET("/notifications/stream", notifyH.Stream)
	api.GET("/toasts/stream", toastH.Stream)

	api.POST("/catalog/sync", catalogH.Sync)
	return r
}
