package domain

import "context"

// Message 发往上游模型的消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamDelta 上游流中的一个增量，Usage 只出现在最后的用量块中
type StreamDelta struct {
	Content string
	Usage   *Usage
}

// ChatStream 上游流式响应，结束时 Recv 返回 io.EOF
type ChatStream interface {
	Recv() (StreamDelta, error)
	Close() error
}

// ChatModel 上游流式对话模型
type ChatModel interface {
	// StreamChat 发起流式对话，messages 不含系统提示
	StreamChat(ctx context.Context, messages []Message) (ChatStream, error)
}

// ToMessages 将历史转换为上游消息（角色 + 内容）
func ToMessages(turns []ChatTurn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, Message{Role: string(t.Role), Content: t.Content})
	}
	return out
}
