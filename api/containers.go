package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/versioned/response"
	"github.com/wyfcoding/versioned/version"
)

func (h *Handler) listContainers(c *gin.Context) {
	response.Success(c, h.svc.List(c.Request.Context()))
}

func (h *Handler) getContainer(c *gin.Context) {
	info, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, info)
}

func (h *Handler) dropContainer(c *gin.Context) {
	if err := h.svc.Drop(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type checkoutRequest struct {
	Version *version.ID `json:"version" binding:"required"`
}

func (h *Handler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	v, err := h.svc.Checkout(c.Request.Context(), c.Param("id"), *req.Version)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, VersionReply{Version: v})
}

func (h *Handler) audit(c *gin.Context) {
	v, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.Audit(c.Request.Context(), c.Param("id"), v); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"version": v, "ok": true})
}

func (h *Handler) save(c *gin.Context) {
	name, err := h.svc.Save(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"name": name})
}

func (h *Handler) load(c *gin.Context) {
	info, err := h.svc.Load(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, info)
}
