package controller

import (
	"context"
	"net/http"
	"time"

	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Backend cms.Backend
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, backend cms.Backend) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Backend: backend}
}

// @Summary 健康检查
// @Description 检查服务状态及已启用的依赖
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true

	// 数据库只在本地后端下启用
	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(reqCtx)
		}
		components["database"] = status(err)
		healthy = healthy && err == nil
	}

	if c.Redis != nil {
		err := c.Redis.Ping(reqCtx).Err()
		components["redis"] = status(err)
		healthy = healthy && err == nil
	}

	if c.Backend != nil {
		_, err := c.Backend.List(reqCtx, cms.CollectionCourses, cms.Query{PageSize: 1})
		components["cms"] = status(err)
		healthy = healthy && err == nil
	}

	if util.ProbeAvailable() {
		components["ffprobe"] = "up"
	} else {
		components["ffprobe"] = "missing"
	}

	if !healthy {
		ctx.JSON(http.StatusServiceUnavailable, util.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "Dependency unavailable",
			Data:    gin.H{"status": "degraded", "components": components},
		})
		return
	}
	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}

func status(err error) string {
	if err != nil {
		return "down"
	}
	return "up"
}
