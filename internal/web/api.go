package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/shuttleup/internal/authkit"
	"github.com/tyemirov/shuttleup/internal/league"
	"github.com/tyemirov/shuttleup/internal/profile"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const maxAvatarRequestBytes = profile.MaxAvatarBytes + 1<<20

// APIDependencies wires the session-protected JSON endpoints.
type APIDependencies struct {
	Profiles  *profile.Service
	League    *league.Directory
	Validator *sessionvalidator.Validator
	Logger    *zap.Logger
}

type apiHandlers struct {
	APIDependencies
}

// MountAPI registers the profile and league endpoints under /api behind RequireSession.
func MountAPI(router gin.IRouter, dependencies APIDependencies) {
	if dependencies.Profiles == nil || dependencies.League == nil {
		panic("profile service and league directory are required")
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	handlers := &apiHandlers{APIDependencies: dependencies}

	group := router.Group("/api", authkit.RequireSession(dependencies.Validator))
	group.GET("/profile", handlers.getProfile)
	group.PATCH("/profile", handlers.updateProfile)
	group.POST("/profile/avatar", handlers.uploadAvatar)
	group.GET("/teams", handlers.listTeams)
	group.GET("/teams/:id", handlers.getTeam)
	group.GET("/standings", handlers.getStandings)
	group.GET("/schedule", handlers.getSchedule)
	group.GET("/players", handlers.searchPlayers)
	group.GET("/umpire/matches", handlers.listUmpireMatches)
}

func (handlers *apiHandlers) seed(contextGin *gin.Context) (profile.Seed, bool) {
	claims, ok := authkit.SessionClaims(contextGin)
	if !ok {
		handlers.Logger.Warn("missing session claims on context", zap.String("code", "api.missing_claims"))
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return profile.Seed{}, false
	}
	return profile.Seed{
		UserID:      claims.GetUserID(),
		DisplayName: claims.GetUserDisplayName(),
		Email:       claims.GetUserEmail(),
		PhotoURL:    claims.GetUserAvatarURL(),
	}, true
}

func (handlers *apiHandlers) getProfile(contextGin *gin.Context) {
	seed, ok := handlers.seed(contextGin)
	if !ok {
		return
	}
	current, err := handlers.Profiles.Profile(contextGin.Request.Context(), seed)
	if err != nil {
		handlers.respondProfileError(contextGin, "api.profile.get", seed.UserID, err)
		return
	}
	contextGin.JSON(http.StatusOK, presentProfile(current, seed))
}

func (handlers *apiHandlers) updateProfile(contextGin *gin.Context) {
	seed, ok := handlers.seed(contextGin)
	if !ok {
		return
	}
	var update profile.DetailsUpdate
	if bindErr := contextGin.ShouldBindJSON(&update); bindErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid profile update", "details": "Request body must be JSON."})
		return
	}
	updated, err := handlers.Profiles.UpdateDetails(contextGin.Request.Context(), seed, update)
	if err != nil {
		handlers.respondProfileError(contextGin, "api.profile.update", seed.UserID, err)
		return
	}
	contextGin.JSON(http.StatusOK, presentProfile(updated, seed))
}

func (handlers *apiHandlers) uploadAvatar(contextGin *gin.Context) {
	seed, ok := handlers.seed(contextGin)
	if !ok {
		return
	}
	contextGin.Request.Body = http.MaxBytesReader(contextGin.Writer, contextGin.Request.Body, maxAvatarRequestBytes)
	fileHeader, formErr := contextGin.FormFile("avatar")
	if formErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Avatar file is required", "details": "Send a multipart form with an avatar field."})
		return
	}
	file, openErr := fileHeader.Open()
	if openErr != nil {
		handlers.respondProfileError(contextGin, "api.profile.avatar_open", seed.UserID, openErr)
		return
	}
	defer file.Close()

	updated, err := handlers.Profiles.UploadAvatar(contextGin.Request.Context(), seed, file)
	if err != nil {
		handlers.respondProfileError(contextGin, "api.profile.avatar", seed.UserID, err)
		return
	}
	contextGin.JSON(http.StatusOK, presentProfile(updated, seed))
}

func (handlers *apiHandlers) respondProfileError(contextGin *gin.Context, code string, userID string, err error) {
	status, message := http.StatusInternalServerError, "Profile operation failed"
	switch {
	case errors.Is(err, profile.ErrInvalidTeam):
		status, message = http.StatusBadRequest, "Team name must be between 1 and 40 characters"
	case errors.Is(err, profile.ErrInvalidSkillLevel):
		status, message = http.StatusBadRequest, "Skill level must be Beginner, Intermediate or Advanced"
	case errors.Is(err, profile.ErrAvatarEmpty):
		status, message = http.StatusBadRequest, "Avatar file is empty"
	case errors.Is(err, profile.ErrAvatarTooLarge):
		status, message = http.StatusRequestEntityTooLarge, "Avatar must be 5 MB or smaller"
	case errors.Is(err, profile.ErrAvatarUnsupportedType):
		status, message = http.StatusUnsupportedMediaType, "Avatar must be a PNG, JPEG, GIF or WebP image"
	case errors.Is(err, profile.ErrAvatarStorageUnavailable):
		status, message = http.StatusServiceUnavailable, "Avatar uploads are not configured"
	}
	if status >= http.StatusInternalServerError {
		handlers.Logger.Error("profile request failed", zap.String("code", code), zap.String("user_id", userID), zap.Error(err))
	} else {
		handlers.Logger.Info("profile request rejected", zap.String("code", code), zap.String("user_id", userID), zap.Error(err))
	}
	contextGin.AbortWithStatusJSON(status, gin.H{"error": message})
}

func (handlers *apiHandlers) listTeams(contextGin *gin.Context) {
	contextGin.JSON(http.StatusOK, handlers.League.Teams())
}

func (handlers *apiHandlers) getTeam(contextGin *gin.Context) {
	teamID, parseErr := strconv.Atoi(contextGin.Param("id"))
	if parseErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Team not found"})
		return
	}
	detail, err := handlers.League.Team(teamID)
	if err != nil {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Team not found"})
		return
	}
	contextGin.JSON(http.StatusOK, detail)
}

func (handlers *apiHandlers) getStandings(contextGin *gin.Context) {
	contextGin.JSON(http.StatusOK, handlers.League.Standings())
}

func (handlers *apiHandlers) getSchedule(contextGin *gin.Context) {
	contextGin.JSON(http.StatusOK, handlers.League.Schedule())
}

func (handlers *apiHandlers) listUmpireMatches(contextGin *gin.Context) {
	contextGin.JSON(http.StatusOK, handlers.League.UmpireMatches())
}

func (handlers *apiHandlers) searchPlayers(contextGin *gin.Context) {
	seed, ok := handlers.seed(contextGin)
	if !ok {
		return
	}
	players, err := handlers.League.SearchPlayers(contextGin.Request.Context(), contextGin.Query("q"), seed.UserID)
	if err != nil {
		handlers.Logger.Error("player search failed", zap.String("code", "api.players.search"), zap.Error(err))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Player search failed"})
		return
	}
	contextGin.JSON(http.StatusOK, players)
}

// profileView is the profile as the API returns it, with derived per-sport win rates.
type profileView struct {
	profile.UserProfile
	WinRates map[profile.Sport]int `json:"winRates"`
}

func presentProfile(current profile.UserProfile, seed profile.Seed) profileView {
	if current.Avatar == "" {
		current.Avatar = seed.PhotoURL
	}
	winRates := make(map[profile.Sport]int, len(current.Stats))
	for sport, stats := range current.Stats {
		winRates[sport] = stats.WinRate()
	}
	return profileView{UserProfile: current, WinRates: winRates}
}
