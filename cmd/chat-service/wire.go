//go:build wireinject
// +build wireinject

package main

import (
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"contextrelay/cmd/chat-service/internal/biz"
	"contextrelay/cmd/chat-service/internal/conf"
	"contextrelay/cmd/chat-service/internal/data"
	"contextrelay/cmd/chat-service/internal/infra"
	"contextrelay/cmd/chat-service/internal/server"
	"contextrelay/cmd/chat-service/internal/service"
)

// wireApp 初始化应用
func wireApp(c *conf.Config, logger log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		wire.FieldsOf(new(*conf.Config), "Server", "Data", "DeepSeek", "Kafka", "Compression", "Pricing"),
		data.ProviderSet,
		infra.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		newCompressor,
		newEventPublisher,
		newPricing,
		newApp,
	))
}
