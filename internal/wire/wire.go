//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"fin-rag-api/internal/config"
)

// InitializeApp 初始化问答应用（CLI 使用，不含 HTTP 层）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		VectorSet,
		LLMSet,
		StorageSet,
		PipelineSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeServer 初始化 HTTP 服务
func InitializeServer(ctx context.Context, cfg *config.Config) (*Server, func(), error) {
	wire.Build(
		VectorSet,
		LLMSet,
		StorageSet,
		PipelineSet,
		HTTPSet,
		wire.Struct(new(App), "*"),
		wire.Struct(new(Server), "*"),
	)
	return nil, nil, nil
}
