// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 问答
	if h.Query != nil {
		q := v1.Group("/query")
		{
			q.POST("/answer", h.Query.Answer)
			q.POST("/decompose", h.Query.Decompose)
			q.GET("/examples", h.Query.Examples)
		}
	}

	// 检索调试
	if h.Retrieval != nil {
		v1.POST("/retrieval/search", h.Retrieval.Search)
	}

	if h.System != nil {
		v1.GET("/system/status", h.System.Status)
	}

	// 问答日志，仅在启用 PostgreSQL 时注册
	if h.QueryLog != nil {
		logs := v1.Group("/queries")
		{
			logs.GET("", h.QueryLog.List)
			logs.GET("/stats", h.QueryLog.Stats)
			logs.GET("/:id", h.QueryLog.Get)
		}
	}
}
