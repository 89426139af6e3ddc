package main

import (
	"github.com/go-kratos/kratos/v2/log"

	"contextrelay/cmd/chat-service/internal/biz"
	"contextrelay/cmd/chat-service/internal/compression"
	"contextrelay/cmd/chat-service/internal/conf"
	"contextrelay/cmd/chat-service/internal/infra/kafka"
)

// newCompressor 创建压缩器，配置了词库文件时覆盖内置词库
func newCompressor(c *conf.Compression, logger log.Logger) (*compression.Compressor, error) {
	var lex *compression.Lexicon
	if c.LexiconFile != "" {
		l, err := compression.LoadLexicon(c.LexiconFile)
		if err != nil {
			return nil, err
		}
		lex = l
		log.NewHelper(logger).Infof("lexicon loaded from %s", c.LexiconFile)
	}
	return compression.NewCompressor(lex, logger)
}

// newEventPublisher 配置了 Kafka 时发布压缩事件，否则丢弃
func newEventPublisher(c *conf.Kafka, logger log.Logger) (biz.EventPublisher, func(), error) {
	if len(c.Brokers) == 0 {
		return biz.NoopPublisher{}, func() {}, nil
	}

	producer, err := kafka.NewEventProducer(&kafka.ProducerConfig{
		Brokers:     c.Brokers,
		Topic:       c.Topic,
		Compression: c.Compression,
		MaxRetries:  c.MaxRetries,
		Timeout:     c.Timeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := producer.Close(); err != nil {
			log.NewHelper(logger).Errorf("close kafka producer: %v", err)
		}
	}
	return producer, cleanup, nil
}

// newPricing 价格配置
func newPricing(c *conf.Pricing) biz.Pricing {
	return biz.Pricing{
		InputPerToken:  c.InputPerToken,
		OutputPerToken: c.OutputPerToken,
	}
}
