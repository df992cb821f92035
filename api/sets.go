package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/versioned/response"
	"github.com/wyfcoding/versioned/version"
)

type createSetRequest struct {
	Name string `json:"name"`
	Seed uint64 `json:"seed"`
}

func (h *Handler) createSet(c *gin.Context) {
	var req createSetRequest
	if c.Request.ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			h.fail(c, err)
			return
		}
	}
	info, err := h.svc.CreateOrderedSet(c.Request.Context(), req.Name, req.Seed)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, info)
}

type keyRequest struct {
	Key *int64 `json:"key" binding:"required"`
}

func (h *Handler) mutateKey(c *gin.Context, fn func(ctx context.Context, id string, base version.ID, key int64) (version.ID, error)) {
	base, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req keyRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	v, err := fn(c.Request.Context(), c.Param("id"), base, *req.Key)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, VersionReply{Version: v})
}

func (h *Handler) insert(c *gin.Context) { h.mutateKey(c, h.svc.Insert) }
func (h *Handler) delete(c *gin.Context) { h.mutateKey(c, h.svc.Delete) }

// readParam 解析版本号与一个整型查询参数后执行读操作。
func (h *Handler) readParam(c *gin.Context, param string, fn func(ctx context.Context, id string, v version.ID, x int64) (any, error)) {
	v, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	x, err := queryInt(c, param)
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := fn(c.Request.Context(), c.Param("id"), v, x)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, out)
}

func (h *Handler) rank(c *gin.Context) {
	h.readParam(c, "key", func(ctx context.Context, id string, v version.ID, key int64) (any, error) {
		r, err := h.svc.Rank(ctx, id, v, key)
		return gin.H{"rank": r}, err
	})
}

func (h *Handler) kth(c *gin.Context) {
	h.readParam(c, "k", func(ctx context.Context, id string, v version.ID, k int64) (any, error) {
		out, err := h.svc.Kth(ctx, id, v, int(k))
		return ValueReply{Value: out}, err
	})
}

func (h *Handler) predecessor(c *gin.Context) {
	h.readParam(c, "key", func(ctx context.Context, id string, v version.ID, key int64) (any, error) {
		out, err := h.svc.Predecessor(ctx, id, v, key)
		return ValueReply{Value: out}, err
	})
}

func (h *Handler) successor(c *gin.Context) {
	h.readParam(c, "key", func(ctx context.Context, id string, v version.ID, key int64) (any, error) {
		out, err := h.svc.Successor(ctx, id, v, key)
		return ValueReply{Value: out}, err
	})
}

func (h *Handler) contains(c *gin.Context) {
	h.readParam(c, "key", func(ctx context.Context, id string, v version.ID, key int64) (any, error) {
		ok, err := h.svc.Contains(ctx, id, v, key)
		return gin.H{"contains": ok}, err
	})
}

func (h *Handler) size(c *gin.Context) {
	v, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	n, err := h.svc.Size(c.Request.Context(), c.Param("id"), v)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"size": n})
}

func (h *Handler) keys(c *gin.Context) {
	v, err := pathVersion(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	keys, err := h.svc.Keys(c.Request.Context(), c.Param("id"), v)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"keys": keys})
}
