package api

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/versioned/response"
)

type aggregateRequest struct {
	Parent []int   `json:"parent" binding:"required,min=1"`
	Values []int64 `json:"values" binding:"required,min=1"`
}

func (h *Handler) aggregate(c *gin.Context) {
	var req aggregateRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.svc.Aggregate(c.Request.Context(), req.Parent, req.Values)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, res)
}
