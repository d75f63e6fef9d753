package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stellarlinkco/pixbot/internal/activity"
	"github.com/stellarlinkco/pixbot/internal/burn"
	"github.com/stellarlinkco/pixbot/internal/bus"
	"github.com/stellarlinkco/pixbot/internal/channel"
	"github.com/stellarlinkco/pixbot/internal/config"
	"github.com/stellarlinkco/pixbot/internal/cron"
	"github.com/stellarlinkco/pixbot/internal/pagination"
	"github.com/stellarlinkco/pixbot/internal/report"
	"github.com/stellarlinkco/pixbot/internal/statusapi"
)

const (
	activitySchedulerName = "activity"
	burnSchedulerName     = "burn"
)

// EventSource fetches raw game events from the indexer.
type EventSource interface {
	FetchEvents(ctx context.Context) ([]activity.Event, error)
	TestConnection(ctx context.Context) bool
}

// Options for creating a Gateway
type Options struct {
	Events     EventSource
	Items      activity.ItemSource
	Supply     burn.SupplyReader
	BotFactory channel.BotFactory
	// SchedulerOptions are applied to both report schedulers.
	SchedulerOptions []cron.Option
	SignalChan       chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	channels   *channel.ChannelManager
	events     EventSource
	catalog    *activity.Catalog
	aggregator *activity.Aggregator
	tracker    *burn.Tracker
	activity   *cron.Scheduler
	burn       *cron.Scheduler
	pages      *pagination.Store
	render     *report.Renderer
	status     *statusapi.Server
	signalChan chan os.Signal // for testing
	logger     zerolog.Logger

	mu     sync.RWMutex
	runCtx context.Context
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		bus:        bus.NewMessageBus(bus.DefaultBufSize),
		aggregator: activity.NewAggregator(nil),
		signalChan: opts.SignalChan,
		logger:     log.With().Str("component", "gateway").Logger(),
	}

	// Indexer
	var client *activity.Client
	if opts.Events == nil || opts.Items == nil {
		client = activity.NewClient(cfg.Indexer.URL, nil)
	}
	g.events = opts.Events
	if g.events == nil {
		g.events = client
	}
	items := opts.Items
	if items == nil {
		items = client
	}
	g.catalog = activity.NewCatalog(items, cfg.Indexer.ItemCacheTTL)
	g.render = report.New(g.catalog)

	// Supply
	supply := opts.Supply
	if supply == nil {
		supply = burn.NewRPCSupplyReader(cfg.Seed.ContractAddress, cfg.Seed.RPCEndpoints(), cfg.Seed.RPCMaxTries, nil)
	}
	g.tracker = burn.NewTracker(supply, cfg.Seed.TotalSupply)

	g.pages = pagination.NewStore(cfg.Reports.PageSize, cfg.Reports.PaginationTTL)

	// Schedulers
	g.activity = cron.NewScheduler(activitySchedulerName, cfg.Reports.ActivityIntervalMinutes, opts.SchedulerOptions...)
	g.activity.OnFire = func(tr cron.Trigger) { g.scheduledActivityReport(g.context(), tr) }
	g.burn = cron.NewScheduler(burnSchedulerName, cfg.Reports.BurnIntervalMinutes, opts.SchedulerOptions...)
	g.burn.OnFire = func(tr cron.Trigger) { g.scheduledBurnReport(g.context(), tr) }

	// Channels
	var (
		chMgr *channel.ChannelManager
		err   error
	)
	if opts.BotFactory != nil {
		chMgr, err = channel.NewChannelManagerWithFactory(cfg.Telegram, g.bus, opts.BotFactory)
	} else {
		chMgr, err = channel.NewChannelManager(cfg.Telegram, g.bus)
	}
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	if cfg.HTTPAddr != "" {
		g.status = statusapi.New(cfg.HTTPAddr, g)
	}

	return g, nil
}

func (g *Gateway) context() context.Context {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.runCtx == nil {
		return context.Background()
	}
	return g.runCtx
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.mu.Lock()
	g.runCtx = ctx
	g.mu.Unlock()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.Telegram().Connect(); err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}
	g.prepare(ctx)

	g.activity.Start()
	g.burn.Start()

	if err := g.channels.StartAll(ctx); err != nil {
		g.activity.Stop()
		g.burn.Stop()
		return fmt.Errorf("start channels: %w", err)
	}
	g.logger.Info().Strs("channels", g.channels.EnabledChannels()).Msg("channels started")

	go g.processLoop(ctx)

	if g.status != nil {
		if err := g.status.Start(); err != nil {
			g.logger.Warn().Err(err).Msg("status api start failed")
		}
	}

	g.logger.Info().
		Int64("target_chat", g.cfg.Telegram.TargetChatID).
		Int("activity_interval", g.activity.Interval()).
		Int("burn_interval", g.burn.Interval()).
		Msg("running")

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	g.logger.Info().Msg("shutting down...")
	return g.Shutdown()
}

// prepare runs the startup checks. Failures are warnings only.
func (g *Gateway) prepare(ctx context.Context) {
	chatID := g.cfg.Telegram.TargetChatID
	if title, err := g.channels.Telegram().CheckChat(chatID); err != nil {
		g.logger.Warn().Err(err).Int64("chat_id", chatID).
			Msg("cannot access target chat, make sure the bot is added to it")
	} else {
		g.logger.Info().Int64("chat_id", chatID).Str("title", title).Msg("target chat is accessible")
	}

	if err := g.tracker.InitializeBaseline(ctx, g.burn.Interval()); err != nil {
		g.logger.Warn().Err(err).Msg("failed to initialize burn baseline, first burn report may be inaccurate")
	}
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.logger.Debug().
				Str("channel", msg.Channel).
				Int64("sender", msg.SenderID).
				Int64("chat_id", msg.ChatID).
				Str("content", truncate(msg.Content, 80)).
				Str("callback", msg.CallbackData).
				Msg("inbound")
			// Reports wait on the indexer or RPC; keep reading meanwhile.
			go g.handle(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handle(ctx context.Context, msg bus.InboundMessage) {
	if msg.IsCallback() {
		g.handleCallback(ctx, msg)
		return
	}
	g.handleCommand(ctx, msg)
}

func (g *Gateway) send(ctx context.Context, msg bus.OutboundMessage) {
	if msg.Channel == "" {
		msg.Channel = channel.TelegramChannelName
	}
	select {
	case g.bus.Outbound <- msg:
	case <-ctx.Done():
		g.logger.Warn().Int64("chat_id", msg.ChatID).Msg("dropped outbound message on shutdown")
	}
}

func (g *Gateway) reply(ctx context.Context, in bus.InboundMessage, text string) {
	g.send(ctx, bus.OutboundMessage{Channel: in.Channel, ChatID: in.ChatID, Content: text, HTML: true})
}

// notifyAdmins sends a plain-text notice to every admin. Delivery is best
// effort; send failures are only logged.
func (g *Gateway) notifyAdmins(ctx context.Context, text string) {
	for _, id := range g.cfg.Telegram.Admins {
		g.send(ctx, bus.OutboundMessage{ChatID: id, Content: text})
	}
}

// Snapshot implements statusapi.Provider.
func (g *Gateway) Snapshot() statusapi.Snapshot {
	shop, garden := g.catalog.Sizes()
	return statusapi.Snapshot{
		Schedulers: []statusapi.SchedulerStatus{
			schedulerStatus(g.activity),
			schedulerStatus(g.burn),
		},
		TrackedChats: g.pages.Len(),
		ShopItems:    shop,
		GardenItems:  garden,
	}
}

func schedulerStatus(s *cron.Scheduler) statusapi.SchedulerStatus {
	st := s.Status()
	out := statusapi.SchedulerStatus{
		Name:             s.Name(),
		Running:          st.Running,
		IntervalMinutes:  st.IntervalMinutes,
		NextFireEstimate: st.NextFireEstimate,
	}
	if !st.NextScheduled.IsZero() {
		next := st.NextScheduled
		out.NextScheduled = &next
	}
	return out
}

func (g *Gateway) Shutdown() error {
	g.activity.Stop()
	g.burn.Stop()
	if g.status != nil {
		_ = g.status.Stop()
	}
	_ = g.channels.StopAll()
	g.logger.Info().Msg("shutdown complete")
	return nil
}

// restartSchedulers stops both schedulers, waits delay and starts them
// again. It does not wait for in-flight reports.
func (g *Gateway) restartSchedulers(ctx context.Context, delay time.Duration) error {
	g.activity.Stop()
	g.burn.Stop()
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.activity.Start()
	g.burn.Start()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
