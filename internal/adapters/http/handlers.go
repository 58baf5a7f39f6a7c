package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/livestage/internal/app/stage"
	"github.com/dkeye/livestage/internal/domain"
)

type handlers struct {
	stage *stage.Controller
}

type targetRequest struct {
	Identity string `json:"identity"`
}

// bindJSON decodes the body into v; an empty body leaves v zero when
// optional is set.
func bindJSON(c *gin.Context, v any, optional bool) bool {
	err := c.ShouldBindJSON(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	abortWithError(c, domain.InvalidArgument("malformed request body"))
	return false
}

func (h *handlers) createStream(c *gin.Context) {
	var req stage.CreateStreamRequest
	if !bindJSON(c, &req, false) {
		return
	}
	res, err := h.stage.CreateStream(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) joinStream(c *gin.Context) {
	var req stage.JoinStreamRequest
	if !bindJSON(c, &req, false) {
		return
	}
	res, err := h.stage.JoinStream(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) createIngress(c *gin.Context) {
	var req stage.CreateIngressRequest
	if !bindJSON(c, &req, false) {
		return
	}
	res, err := h.stage.CreateIngress(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) stopStream(c *gin.Context) {
	if err := h.stage.StopStream(c.Request.Context(), sessionOf(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *handlers) raiseHand(c *gin.Context) {
	st, err := h.stage.RaiseHand(c.Request.Context(), sessionOf(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) inviteToStage(c *gin.Context) {
	var req targetRequest
	if !bindJSON(c, &req, false) {
		return
	}
	st, err := h.stage.InviteToStage(c.Request.Context(), sessionOf(c), req.Identity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) removeFromStage(c *gin.Context) {
	var req targetRequest
	if !bindJSON(c, &req, true) {
		return
	}
	st, err := h.stage.RemoveFromStage(c.Request.Context(), sessionOf(c), req.Identity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) room(c *gin.Context) {
	view, err := h.stage.Room(c.Request.Context(), sessionOf(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
