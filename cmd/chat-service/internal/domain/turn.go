package domain

import (
	"time"

	"github.com/google/uuid"
)

// TurnRole 对话轮次角色
type TurnRole string

const (
	RoleUser      TurnRole = "user"      // 用户
	RoleAssistant TurnRole = "assistant" // 助手
	RoleSystem    TurnRole = "system"    // 系统（含压缩块）
)

// Valid 角色是否合法
func (r TurnRole) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// CompressedRange 压缩块替换的消息区间（从 1 开始，闭区间）
type CompressedRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ChatTurn 对话中的一条消息
type ChatTurn struct {
	ID              string           `json:"id"`
	Role            TurnRole         `json:"role"`
	Content         string           `json:"content"`
	Timestamp       time.Time        `json:"timestamp"`
	IsCompressed    bool             `json:"isCompressed,omitempty"`
	CompressedRange *CompressedRange `json:"compressedRange,omitempty"`
}

// NewChatTurn 创建消息
func NewChatTurn(role TurnRole, content string) ChatTurn {
	return ChatTurn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// CountUncompressed 统计未压缩的消息数
func CountUncompressed(turns []ChatTurn) int {
	n := 0
	for _, t := range turns {
		if !t.IsCompressed {
			n++
		}
	}
	return n
}

// CountCompressed 统计已有的压缩块数
func CountCompressed(turns []ChatTurn) int {
	return len(turns) - CountUncompressed(turns)
}

// FilterByRole 按角色过滤
func FilterByRole(turns []ChatTurn, role TurnRole) []ChatTurn {
	var out []ChatTurn
	for _, t := range turns {
		if t.Role == role {
			out = append(out, t)
		}
	}
	return out
}
