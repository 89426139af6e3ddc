package domain

import "errors"

var (
	// ErrSessionNotFound 会话未找到
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyMessage 消息内容为空
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrEmptyMessages 消息列表为空
	ErrEmptyMessages = errors.New("messages array is required")

	// ErrInvalidTurnRole 无效的消息角色
	ErrInvalidTurnRole = errors.New("invalid turn role")

	// ErrAPIKeyMissing 未配置上游 API Key
	ErrAPIKeyMissing = errors.New("api key not configured")

	// ErrUpstream 上游模型调用失败
	ErrUpstream = errors.New("deepseek api error")

	// ErrGenerationInProgress 会话已有进行中的生成
	ErrGenerationInProgress = errors.New("generation already in progress")
)
