package main

import (
	"context"
	"fmt"
)

func (a *app) runStats(ctx context.Context) error {
	id, err := a.currentSession()
	if err != nil {
		return err
	}
	return a.printStats(ctx, id)
}

func (a *app) runReset(ctx context.Context) error {
	id, err := a.currentSession()
	if err != nil {
		return err
	}
	return a.reset(ctx, id)
}

// printStats 输出压缩报告与费用
func (a *app) printStats(ctx context.Context, sessionID string) error {
	r, err := a.client.GetStats(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Fprintln(a.out, r.DetailedReport)
	fmt.Fprintf(a.out, "💰 Токены: %d вход / %d выход | Стоимость: %s | В среднем %d токенов на обмен\n",
		r.Chat.InputTokens, r.Chat.OutputTokens, r.FormattedCost, r.AverageTokens)
	return nil
}

func (a *app) reset(ctx context.Context, sessionID string) error {
	if _, err := a.client.ResetSession(ctx, sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	fmt.Fprintln(a.out, "История очищена")
	return nil
}
