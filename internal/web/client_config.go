package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientConfig carries the public identity-provider settings the browser needs.
type ClientConfig struct {
	IdentityProvider  string `json:"identityProvider"`
	FirebaseAPIKey    string `json:"apiKey,omitempty"`
	AuthDomain        string `json:"authDomain,omitempty"`
	ProjectID         string `json:"projectId,omitempty"`
	StorageBucket     string `json:"storageBucket,omitempty"`
	MessagingSenderID string `json:"messagingSenderId,omitempty"`
	AppID             string `json:"appId,omitempty"`
	GoogleClientID    string `json:"googleClientId,omitempty"`
	BaseURL           string `json:"baseUrl"`
	NonceRequired     bool   `json:"nonceRequired"`
}

// ServeClientConfig emits a script that freezes the config into window.__SHUTTLEUP_CONFIG.
func ServeClientConfig(contextGin *gin.Context, configuration ClientConfig) {
	if strings.TrimSpace(configuration.BaseURL) == "" {
		host := contextGin.Request.Host
		if host == "" {
			host = "localhost"
		}
		configuration.BaseURL = fmt.Sprintf("%s://%s", forwardedProto(contextGin.Request), host)
	}

	encoded, encodeErr := json.Marshal(configuration)
	if encodeErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "web.client_config.encode_failed",
		})
		return
	}

	script := fmt.Sprintf(`(function(){window.__SHUTTLEUP_CONFIG=Object.freeze(%s);})();`, string(encoded))

	contextGin.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	contextGin.Header("Pragma", "no-cache")
	contextGin.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(script))
}

func forwardedProto(request *http.Request) string {
	if request == nil {
		return "https"
	}
	if headerValue := request.Header.Get("X-Forwarded-Proto"); headerValue != "" {
		return headerValue
	}
	if request.TLS != nil {
		return "https"
	}
	if request.URL != nil && request.URL.Scheme != "" {
		return request.URL.Scheme
	}
	return "http"
}
