// Package api 把容器服务暴露为 HTTP 接口，所有响应使用 response 包的统一信封。
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/versioned/health"
	"github.com/wyfcoding/versioned/logging"
	"github.com/wyfcoding/versioned/response"
	"github.com/wyfcoding/versioned/service"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// Handler HTTP 处理器。
type Handler struct {
	svc    *service.Service
	health *health.Registry
	logger *logging.Logger
}

// NewHandler 创建处理器，health 为空时 /healthz 只报告进程存活。
func NewHandler(svc *service.Service, reg *health.Registry, logger *logging.Logger) *Handler {
	if reg == nil {
		reg = health.NewRegistry(0)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, health: reg, logger: logger}
}

// Register 注册 /v1 路由。
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")

	containers := v1.Group("/containers")
	containers.GET("", h.listContainers)
	containers.GET("/:id", h.getContainer)
	containers.DELETE("/:id", h.dropContainer)
	containers.POST("/:id/checkout", h.checkout)
	containers.GET("/:id/versions/:v/audit", h.audit)
	containers.POST("/:id/snapshot", h.save)
	v1.POST("/snapshots/:name/load", h.load)

	seg := v1.Group("/segments")
	seg.POST("", h.createSegment)
	seg.POST("/:id/versions/:v/update", h.update)
	seg.POST("/:id/versions/:v/set", h.set)
	seg.GET("/:id/versions/:v/query", h.query)
	seg.GET("/:id/versions/:v/point", h.point)
	seg.GET("/:id/versions/:v/values", h.values)
	seg.GET("/:id/kth-diff", h.kthInDiff)

	set := v1.Group("/sets")
	set.POST("", h.createSet)
	set.POST("/:id/versions/:v/insert", h.insert)
	set.POST("/:id/versions/:v/delete", h.delete)
	set.GET("/:id/versions/:v/rank", h.rank)
	set.GET("/:id/versions/:v/kth", h.kth)
	set.GET("/:id/versions/:v/predecessor", h.predecessor)
	set.GET("/:id/versions/:v/successor", h.successor)
	set.GET("/:id/versions/:v/contains", h.contains)
	set.GET("/:id/versions/:v/size", h.size)
	set.GET("/:id/versions/:v/keys", h.keys)

	v1.POST("/forest/aggregate", h.aggregate)
}

// Healthz 汇总依赖检查结果。
func (h *Handler) Healthz(c *gin.Context) {
	rep := h.health.Run(c.Request.Context())
	if !rep.Healthy {
		c.JSON(http.StatusServiceUnavailable, response.Body{Code: http.StatusServiceUnavailable, Msg: "unhealthy", Data: rep})
		return
	}
	response.Success(c, rep)
}

// VersionReply 修改类操作的返回值。
type VersionReply struct {
	Version version.ID `json:"version"`
}

// ValueReply 查询类操作的返回值。
type ValueReply struct {
	Value int64 `json:"value"`
}

func pathVersion(c *gin.Context) (version.ID, error) {
	v, err := strconv.Atoi(c.Param("v"))
	if err != nil {
		return version.None, xerrors.InvalidArg("version must be an integer")
	}
	return version.ID(v), nil
}

func queryInt(c *gin.Context, name string) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return 0, xerrors.InvalidArg("missing query parameter " + name)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, xerrors.InvalidArg("query parameter " + name + " must be an integer")
	}
	return n, nil
}

func bind(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		e := xerrors.InvalidArg("invalid request body")
		e.Detail = err.Error()
		return e
	}
	return nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	if xe, ok := xerrors.FromError(err); !ok || xe.HTTPStatus() >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	response.Error(c, err)
}
