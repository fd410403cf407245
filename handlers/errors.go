package handlers

import (
	"net/http"

	"quizduel/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var statusByCode = map[string]int{
	services.CodeUnauthorized:         http.StatusUnauthorized,
	services.CodeForbidden:            http.StatusForbidden,
	services.CodeRoomNotFound:         http.StatusNotFound,
	services.CodeRoomFull:             http.StatusConflict,
	services.CodeInvalidState:         http.StatusConflict,
	services.CodeInvalidConfiguration: http.StatusBadRequest,
	services.CodeCodeSpaceExhausted:   http.StatusServiceUnavailable,
	services.CodeInvalidAnswer:        http.StatusBadRequest,
	services.CodeRateLimited:          http.StatusTooManyRequests,
}

func respondError(c *gin.Context, err error) {
	code := services.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": services.PublicMessage(err), "code": code})
}

// identityFrom reads the identity set by the auth middleware.
func identityFrom(c *gin.Context) (services.Identity, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return services.Identity{}, false
	}
	id, ok := userID.(uint)
	if !ok || id == 0 {
		return services.Identity{}, false
	}
	return services.Identity{UserID: id, DisplayName: c.GetString("display_name")}, true
}

func requireIdentity(c *gin.Context) (services.Identity, bool) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated", "code": services.CodeUnauthorized})
	}
	return identity, ok
}
