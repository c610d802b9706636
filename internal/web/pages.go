package web

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/shuttleup/internal/profile"
)

// MountPages registers the embedded page shells and the browser auth client.
func MountPages(router gin.IRouter, assets fs.FS, configuration ClientConfig) {
	router.GET("/", func(contextGin *gin.Context) {
		ServeEmbeddedPage(contextGin, assets, "index.html")
	})
	router.GET("/login", func(contextGin *gin.Context) {
		ServeEmbeddedPage(contextGin, assets, "login.html")
	})
	appShell := func(contextGin *gin.Context) {
		ServeEmbeddedPage(contextGin, assets, "app.html")
	}
	router.GET("/app", appShell)
	router.GET("/app/*section", appShell)
	router.GET("/static/auth-client.js", func(contextGin *gin.Context) {
		ServeEmbeddedStaticJS(contextGin, assets, "auth-client.js")
	})
	router.GET("/config.js", func(contextGin *gin.Context) {
		ServeClientConfig(contextGin, configuration)
	})
}

// ServeMemoryAvatars exposes avatars held in process memory under /avatars.
func ServeMemoryAvatars(router gin.IRouter, avatars *profile.MemoryAvatarStorage) {
	router.GET("/avatars/*object", func(contextGin *gin.Context) {
		object, ok := avatars.Open(strings.TrimPrefix(contextGin.Param("object"), "/"))
		if !ok {
			contextGin.AbortWithStatus(http.StatusNotFound)
			return
		}
		contextGin.Header("Cache-Control", "public, max-age=86400")
		contextGin.Data(http.StatusOK, object.ContentType, object.Data)
	})
}
