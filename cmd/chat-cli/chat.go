package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"contextrelay/pkg/clients"
)

// interruptFunc 返回在中断信号到来时取消的 ctx
type interruptFunc func(ctx context.Context) (context.Context, context.CancelFunc)

func notifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

const prompt = "> "

// runChat 交互式对话循环
func (a *app) runChat(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sessionID, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Сессия %s. Ctrl+C во время ответа останавливает генерацию, /exit для выхода.\n", sessionID)

	scanner := bufio.NewScanner(a.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(a.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/stats":
			if err := a.printStats(ctx, sessionID); err != nil {
				fmt.Fprintf(a.out, "Ошибка: %v\n", err)
			}
			continue
		case "/reset":
			if err := a.reset(ctx, sessionID); err != nil {
				fmt.Fprintf(a.out, "Ошибка: %v\n", err)
			}
			continue
		case "/new":
			id, err := a.newSession(ctx)
			if err != nil {
				fmt.Fprintf(a.out, "Ошибка: %v\n", err)
				continue
			}
			sessionID = id
			fmt.Fprintf(a.out, "Новая сессия %s\n", sessionID)
			continue
		}

		if err := a.reply(ctx, sessionID, line); err != nil {
			return err
		}
	}
}

// reply 流式输出一次回复，Ctrl+C 只取消当前回复
func (a *app) reply(ctx context.Context, sessionID, content string) error {
	replyCtx, stop := a.interrupt(ctx)
	defer stop()

	err := a.client.SendMessage(replyCtx, sessionID, content, func(f clients.Frame) error {
		a.printFrame(f)
		return nil
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case replyCtx.Err() != nil:
		fmt.Fprintln(a.out, "\n[генерация остановлена]")
		return nil
	}

	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(a.out, "Ошибка: %s\n", apiErr.Message)
		return nil
	}
	a.logger.Debug("stream failed", zap.String("session_id", sessionID), zap.Error(err))
	fmt.Fprintf(a.out, "\nОшибка соединения: %v\n", err)
	return nil
}

func (a *app) printFrame(f clients.Frame) {
	if f.Error != "" {
		fmt.Fprintf(a.out, "\nОшибка: %s\n", f.Error)
		return
	}
	if f.Content != "" {
		fmt.Fprint(a.out, f.Content)
	}
	if !f.Done {
		return
	}

	fmt.Fprintln(a.out)
	for _, c := range f.Compressions {
		fmt.Fprintf(a.out, "🗜  Блок #%d: %d→%d токенов, Grade %s (попытка %d)\n",
			c.BlockNumber, c.OriginalTokens, c.CompressedTokens, c.OverallGrade, c.Attempt)
	}
	if f.Usage != nil && f.Stats != nil {
		fmt.Fprintf(a.out, "   [%d→%d токенов, всего %s]\n",
			f.Usage.PromptTokens, f.Usage.CompletionTokens, f.Stats.FormattedCost)
	}
}
