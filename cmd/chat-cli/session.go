package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// loadSessionID 读取保存的会话 ID，文件不存在时返回空串
func loadSessionID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func saveSessionID(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(path, []byte(id+"\n"), 0o600)
}

// currentSession 按 --session、会话文件的顺序取会话 ID
func (a *app) currentSession() (string, error) {
	if a.opts.sessionID != "" {
		return a.opts.sessionID, nil
	}
	id, err := loadSessionID(a.opts.sessionFile)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("no session yet, start one with `chat-cli chat`")
	}
	return id, nil
}

// ensureSession 复用已有会话，不存在时新建
func (a *app) ensureSession(ctx context.Context) (string, error) {
	id := a.opts.sessionID
	if id == "" {
		saved, err := loadSessionID(a.opts.sessionFile)
		if err != nil {
			return "", err
		}
		id = saved
	}

	if id != "" {
		_, err := a.client.GetSession(ctx, id)
		if err == nil {
			return id, nil
		}
		a.logger.Debug("saved session unavailable", zap.String("session_id", id), zap.Error(err))
	}
	return a.newSession(ctx)
}

func (a *app) newSession(ctx context.Context) (string, error) {
	s, err := a.client.CreateSession(ctx)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	a.opts.sessionID = s.ID
	if err := saveSessionID(a.opts.sessionFile, s.ID); err != nil {
		a.logger.Warn("failed to save session id", zap.Error(err))
	}
	return s.ID, nil
}
