package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarlinkco/pixbot/internal/bus"
	"github.com/stellarlinkco/pixbot/internal/cron"
	"github.com/stellarlinkco/pixbot/internal/pagination"
	"github.com/stellarlinkco/pixbot/internal/report"
)

func (g *Gateway) scheduledActivityReport(ctx context.Context, tr cron.Trigger) {
	g.logger.Info().Int("interval", tr.IntervalMinutes).Bool("forced", tr.Forced).Msg("generating scheduled activity report")
	if err := g.sendActivityReport(ctx, g.cfg.Telegram.TargetChatID, tr.IntervalMinutes); err != nil {
		g.notifyAdmins(ctx, report.ScheduledFailure("activity", err))
	}
}

func (g *Gateway) scheduledBurnReport(ctx context.Context, tr cron.Trigger) {
	g.logger.Info().Int("interval", tr.IntervalMinutes).Bool("forced", tr.Forced).Msg("generating scheduled SEED burn report")
	if err := g.sendBurnReport(ctx, g.cfg.Telegram.TargetChatID, tr.IntervalMinutes); err != nil {
		g.notifyAdmins(ctx, report.ScheduledFailure("SEED burn", err))
	}
}

// sendActivityReport fetches, aggregates and records the last
// intervalMinutes of activity for chatID and sends its first page. On a
// fetch failure the chat gets an error notice and the error is returned.
func (g *Gateway) sendActivityReport(ctx context.Context, chatID int64, intervalMinutes int) error {
	g.catalog.Refresh(ctx)

	raw, err := g.events.FetchEvents(ctx)
	if err != nil {
		g.logger.Error().Err(err).Int64("chat_id", chatID).Msg("activity report failed")
		g.send(ctx, bus.OutboundMessage{ChatID: chatID, Content: report.ActivityError(err.Error()), HTML: true})
		return err
	}

	events := g.aggregator.Aggregate(raw, intervalMinutes)
	g.logger.Info().Int("raw", len(raw)).Int("events", len(events)).Int("interval", intervalMinutes).Msg("activities aggregated")

	g.pages.Record(chatID, events, intervalMinutes)
	page, err := g.pages.Navigate(chatID, 1)
	if err != nil {
		return fmt.Errorf("open first page: %w", err)
	}
	g.send(ctx, bus.OutboundMessage{
		ChatID:   chatID,
		Content:  g.render.ActivityPage(page),
		HTML:     true,
		Keyboard: report.Keyboard(page.Number, page.Total),
	})
	return nil
}

// sendBurnReport reports SEED burned over intervalMinutes to chatID. On a
// supply read failure the chat gets an error notice and the error is
// returned.
func (g *Gateway) sendBurnReport(ctx context.Context, chatID int64, intervalMinutes int) error {
	data, err := g.tracker.GetBurnData(ctx, intervalMinutes)
	if err != nil {
		g.logger.Error().Err(err).Int64("chat_id", chatID).Msg("SEED burn report failed")
		g.send(ctx, bus.OutboundMessage{ChatID: chatID, Content: g.render.BurnError(err.Error()), HTML: true})
		return err
	}
	g.logger.Info().
		Float64("burned", data.BurnedInPeriod).
		Float64("total_burned", data.TotalBurned).
		Int("interval", intervalMinutes).
		Msg("SEED burn data")

	g.send(ctx, bus.OutboundMessage{ChatID: chatID, Content: report.Burn(data, g.cfg.Seed.TotalSupply), HTML: true})
	return nil
}

func (g *Gateway) handleCallback(ctx context.Context, in bus.InboundMessage) {
	answer := func(text string) {
		g.send(ctx, bus.OutboundMessage{Channel: in.Channel, ChatID: in.ChatID, CallbackID: in.CallbackID, Content: text})
	}

	n, ok := report.ParsePageCallback(in.CallbackData)
	if !ok {
		answer("")
		return
	}

	page, err := g.pages.Navigate(in.ChatID, n)
	if errors.Is(err, pagination.ErrNoReport) || (err == nil && len(page.Events) == 0) {
		answer(msgNoActivities)
		return
	}
	if err != nil {
		g.logger.Error().Err(err).Int64("chat_id", in.ChatID).Msg("page navigation failed")
		answer("Navigation failed")
		return
	}

	g.send(ctx, bus.OutboundMessage{
		Channel:       in.Channel,
		ChatID:        in.ChatID,
		EditMessageID: in.MessageID,
		Content:       g.render.ActivityPage(page),
		HTML:          true,
		Keyboard:      report.Keyboard(page.Number, page.Total),
	})
	answer(fmt.Sprintf("Page %d of %d", page.Number, page.Total))
}
