package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/domain"
)

var statusByKind = map[domain.Kind]int{
	domain.KindUnauthenticated: http.StatusUnauthorized,
	domain.KindInvalidToken:    http.StatusUnauthorized,
	domain.KindInvalidArgument: http.StatusBadRequest,
	domain.KindNotFound:        http.StatusNotFound,
	domain.KindForbidden:       http.StatusForbidden,
	domain.KindConflict:        http.StatusConflict,
	domain.KindUnavailable:     http.StatusServiceUnavailable,
	domain.KindRateLimited:     http.StatusTooManyRequests,
	domain.KindInternal:        http.StatusInternalServerError,
}

func statusOf(kind domain.Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal || kind == domain.KindUnavailable {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(statusOf(kind), errorBody{
		Error:   kind.String(),
		Message: domain.MessageOf(err),
	})
}
