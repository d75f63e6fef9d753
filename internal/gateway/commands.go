package gateway

import (
	"context"
	"html"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/pixbot/internal/bus"
	"github.com/stellarlinkco/pixbot/internal/config"
)

type commandHandler func(g *Gateway, ctx context.Context, in bus.InboundMessage)

var commands = map[string]commandHandler{
	"start":      (*Gateway).cmdStart,
	"activities": (*Gateway).cmdActivities,
	"seedburn":   (*Gateway).cmdSeedBurn,

	"admin_help":          admin((*Gateway).cmdAdminHelp),
	"admin_interval":      admin((*Gateway).cmdSetInterval),
	"admin_seed_interval": admin((*Gateway).cmdSetSeedInterval),
	"admin_status":        admin((*Gateway).cmdStatus),
	"admin_test":          admin((*Gateway).cmdTest),
	"admin_force":         admin((*Gateway).cmdForce),
	"admin_seed_force":    admin((*Gateway).cmdSeedForce),
	"admin_restart":       admin((*Gateway).cmdRestart),
}

func admin(h commandHandler) commandHandler {
	return func(g *Gateway, ctx context.Context, in bus.InboundMessage) {
		if !g.cfg.IsAdmin(in.SenderID) {
			g.reply(ctx, in, msgAccessDenied)
			return
		}
		h(g, ctx, in)
	}
}

func (g *Gateway) handleCommand(ctx context.Context, in bus.InboundMessage) {
	if in.Command == "" {
		if strings.HasPrefix(in.Content, "/") {
			g.reply(ctx, in, msgUnknownCommand)
		}
		return
	}
	h, ok := commands[in.Command]
	if !ok {
		g.reply(ctx, in, msgUnknownCommand)
		return
	}
	h(g, ctx, in)
}

// allowedChat reports whether public report commands may run for in.
func (g *Gateway) allowedChat(in bus.InboundMessage) bool {
	return in.ChatID == g.cfg.Telegram.TargetChatID || g.cfg.IsAdmin(in.SenderID)
}

func (g *Gateway) cmdStart(ctx context.Context, in bus.InboundMessage) {
	g.reply(ctx, in, welcomeText())
}

func (g *Gateway) cmdActivities(ctx context.Context, in bus.InboundMessage) {
	if !g.allowedChat(in) {
		g.reply(ctx, in, msgChatNotAllowed)
		return
	}
	g.logger.Info().Int64("chat_id", in.ChatID).Msg("manual activity report requested")
	_ = g.sendActivityReport(ctx, in.ChatID, g.cfg.Reports.ManualActivityWindowMinutes)
}

func (g *Gateway) cmdSeedBurn(ctx context.Context, in bus.InboundMessage) {
	if !g.allowedChat(in) {
		g.reply(ctx, in, msgChatNotAllowed)
		return
	}
	g.logger.Info().Int64("chat_id", in.ChatID).Msg("manual SEED burn report requested")
	_ = g.sendBurnReport(ctx, in.ChatID, g.cfg.Reports.ManualBurnIntervalMinutes)
}

func (g *Gateway) cmdAdminHelp(ctx context.Context, in bus.InboundMessage) {
	g.reply(ctx, in, adminHelpText(g.cfg.Telegram.TargetChatID, g.activity.Status(), g.burn.Status()))
}

// parseInterval reads the single minutes argument of an interval command.
// ok is false when the argument count is wrong; valid is false when the
// value is not an integer within the supported range.
func parseInterval(args string) (minutes int, ok, valid bool) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return 0, false, false
	}
	m, err := strconv.Atoi(fields[0])
	if err != nil || m < config.MinIntervalMinutes || m > config.MaxIntervalMinutes {
		return 0, true, false
	}
	return m, true, true
}

func (g *Gateway) cmdSetInterval(ctx context.Context, in bus.InboundMessage) {
	minutes, ok, valid := parseInterval(in.Args)
	switch {
	case !ok:
		g.reply(ctx, in, usageText("admin_interval", "180"))
		return
	case !valid:
		g.reply(ctx, in, msgInvalidRange)
		return
	}
	minutes = g.activity.SetInterval(minutes)
	g.logger.Info().Int64("admin", in.SenderID).Int("interval", minutes).Msg("activity interval changed")
	g.reply(ctx, in, "✅ Reporting interval updated to "+humanInterval(minutes)+".")
}

func (g *Gateway) cmdSetSeedInterval(ctx context.Context, in bus.InboundMessage) {
	minutes, ok, valid := parseInterval(in.Args)
	switch {
	case !ok:
		g.reply(ctx, in, usageText("admin_seed_interval", "60"))
		return
	case !valid:
		g.reply(ctx, in, msgInvalidRange)
		return
	}
	minutes = g.burn.SetInterval(minutes)

	if err := g.tracker.InitializeBaseline(ctx, minutes); err != nil {
		g.logger.Warn().Err(err).Int("interval", minutes).Msg("failed to initialize baseline for new interval")
	} else {
		g.logger.Info().Int("interval", minutes).Msg("initialized SEED burn baseline for new interval")
	}

	g.logger.Info().Int64("admin", in.SenderID).Int("interval", minutes).Msg("SEED burn interval changed")
	g.reply(ctx, in, "✅ SEED burn reporting interval updated to "+humanInterval(minutes)+".")
}

func (g *Gateway) cmdStatus(ctx context.Context, in bus.InboundMessage) {
	shop, garden := g.catalog.Sizes()
	g.reply(ctx, in, statusText(statusView{
		Activity:    g.activity.Status(),
		Burn:        g.burn.Status(),
		TargetChat:  g.cfg.Telegram.TargetChatID,
		ShopItems:   shop,
		GardenItems: garden,
		IndexerURL:  html.EscapeString(g.cfg.Indexer.URL),
		Contract:    g.cfg.Seed.ContractAddress,
	}))
}

func (g *Gateway) cmdTest(ctx context.Context, in bus.InboundMessage) {
	g.reply(ctx, in, msgTesting)

	var indexer, contract bool
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		indexer = g.events.TestConnection(egCtx)
		return nil
	})
	eg.Go(func() error {
		contract = g.tracker.TestConnectivity(egCtx)
		return nil
	})
	_ = eg.Wait()

	g.logger.Info().Bool("indexer", indexer).Bool("contract", contract).Msg("connection test")
	g.reply(ctx, in, connectionTestText(indexer, contract))
}

func (g *Gateway) cmdForce(ctx context.Context, in bus.InboundMessage) {
	g.reply(ctx, in, msgForceActivity)
	g.activity.ForceFire()
	g.logger.Info().Int64("admin", in.SenderID).Msg("forced activity report")
}

func (g *Gateway) cmdSeedForce(ctx context.Context, in bus.InboundMessage) {
	g.reply(ctx, in, msgForceBurn)
	g.burn.ForceFire()
	g.logger.Info().Int64("admin", in.SenderID).Msg("forced SEED burn report")
}

func (g *Gateway) cmdRestart(ctx context.Context, in bus.InboundMessage) {
	g.reply(ctx, in, msgRestarting)
	if err := g.restartSchedulers(ctx, g.cfg.Reports.RestartDelay); err != nil {
		g.logger.Error().Err(err).Msg("restart schedulers failed")
		g.reply(ctx, in, "❌ Failed to restart schedulers. Please check the logs.")
		return
	}
	g.logger.Info().Int64("admin", in.SenderID).Msg("restarted both schedulers")
	g.reply(ctx, in, msgRestarted)
}
