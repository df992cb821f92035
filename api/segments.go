package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/versioned/response"
	"github.com/wyfcoding/versioned/version"
)

type createSegmentRequest struct {
	Name       string  `json:"name"`
	Aggregator string  `json:"aggregator" binding:"omitempty,oneof=sum min max"`
	Values     []int64 `json:"values"     binding:"required,min=1"`
}

func (h *Handler) createSegment(c *gin.Context) {
	var req createSegmentRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	info, err := h.svc.CreateSegment(c.Request.Context(), req.Name, req.Values, req.Aggregator)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, info)
}

type updateRequest struct {
	Lo    int   `json:"lo"    binding:"required"`
	Hi    int   `json:"hi"    binding:"required"`
	Delta int64 `json:"delta"`
}

func (h *Handler) update(c *gin.Context) {
	base, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req updateRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	v, err := h.svc.Update(c.Request.Context(), c.Param("id"), base, req.Lo, req.Hi, req.Delta)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, VersionReply{Version: v})
}

type setRequest struct {
	Pos   int   `json:"pos"   binding:"required"`
	Value int64 `json:"value"`
}

func (h *Handler) set(c *gin.Context) {
	base, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req setRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	v, err := h.svc.Set(c.Request.Context(), c.Param("id"), base, req.Pos, req.Value)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, VersionReply{Version: v})
}

func (h *Handler) query(c *gin.Context) {
	v, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	lo, err := queryInt(c, "lo")
	if err != nil {
		h.fail(c, err)
		return
	}
	hi, err := queryInt(c, "hi")
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.Query(c.Request.Context(), c.Param("id"), v, int(lo), int(hi))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, ValueReply{Value: out})
}

func (h *Handler) point(c *gin.Context) {
	v, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	pos, err := queryInt(c, "pos")
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.Point(c.Request.Context(), c.Param("id"), v, int(pos))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, ValueReply{Value: out})
}

func (h *Handler) values(c *gin.Context) {
	v, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.svc.Values(c.Request.Context(), c.Param("id"), v)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"values": out})
}

func (h *Handler) kthInDiff(c *gin.Context) {
	older, err := queryInt(c, "older")
	if err != nil {
		h.fail(c, err)
		return
	}
	newer, err := queryInt(c, "newer")
	if err != nil {
		h.fail(c, err)
		return
	}
	k, err := queryInt(c, "k")
	if err != nil {
		h.fail(c, err)
		return
	}
	pos, err := h.svc.KthInDiff(c.Request.Context(), c.Param("id"), version.ID(older), version.ID(newer), k)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"position": pos})
}
