package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"bookingbot/bot/flows"
	"bookingbot/bot/storage"
	"bookingbot/core/bootstrap"
	"bookingbot/core/cmd"
	"bookingbot/core/logger"
	"bookingbot/core/metrics"
	coretelegram "bookingbot/core/telegram"
	"bookingbot/core/telegram/envelope"
	"bookingbot/core/telegram/flow"
	"bookingbot/core/telegram/router"
	"bookingbot/core/telegram/sender"
)

// App wires storage, flows, and the Telegram runtime together.
type App struct {
	cfg *Config
	db  *sqlx.DB

	users    storage.UserStore
	bookings storage.BookingStore

	out       *sender.Dispatcher
	transport *coretelegram.BotTransport
	flows     *flow.Dispatcher

	metricsSrv *metrics.Server
}

// Bootstrap initializes infrastructure and builds the application.
func Bootstrap(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	metrics.MustRegister()

	a := &App{
		cfg:      cfg,
		db:       res.DB,
		users:    storage.NewUserStore(res.DB),
		bookings: storage.NewBookingStore(res.DB),
		out:      sender.NewDispatcher(sender.Options{}),
	}
	a.transport = coretelegram.NewBotTransport(a.out)
	a.flows = a.buildFlows()
	return a, nil
}

func (a *App) buildFlows() *flow.Dispatcher {
	d := flow.NewDispatcher(flow.Options{
		Transport: a.transport,
		Decide:    a.decide,
	})

	expired := a.cfg.Bot.ExpiredText
	emailFlow := flows.NewEmailFlow(a.users, a.cfg.Bot.EmailDomain)
	bookingFlow := flows.NewBookingFlow(a.bookings, nil)
	helpFlow := flows.NewHelpFlow()

	d.Register(flow.Command{
		Name:        "start",
		Description: "Register your email address",
		New:         func() flow.Runner { return emailFlow.NewSession(a.transport, expired) },
	})
	d.Register(flow.Command{
		Name:        flows.FlowEmail,
		Description: "Change your registered email address",
		New:         func() flow.Runner { return emailFlow.NewSession(a.transport, expired) },
	})
	d.Register(flow.Command{
		Name:        flows.FlowBooking,
		Description: "Book a room",
		New:         func() flow.Runner { return bookingFlow.NewSession(a.transport, expired) },
	})
	d.Register(flow.Command{
		Name:        flows.FlowHelp,
		Description: "Show help",
		New:         func() flow.Runner { return helpFlow.NewSession(a.transport, expired) },
	})
	return d
}

// decide forces email registration for any input from a user with no
// stored email; everything else falls through to the unknown reply.
func (a *App) decide(env envelope.Envelope, _ flow.Runner) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	user, err := a.users.Get(ctx, env.UserID)
	if err != nil {
		logger.Warn(ctx, "app", "decide.lookup.fail",
			slog.Int64("user_id", env.UserID),
			slog.String("err", err.Error()),
		)
		return "", false
	}
	if user == nil || user.Email == "" {
		return flows.FlowEmail, true
	}
	return "", false
}

// TelegramRunOptions assembles the bot runtime configuration.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:      core,
		Dispatcher:  a.out,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      router.Routes(a.flows),
		Commands:    router.Menu(a.flows),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.transport.Bind(rt.Bot)

	if listen := a.cfg.Metrics.Listen; listen != "" {
		a.metricsSrv = metrics.NewServer(listen)
		a.metricsSrv.Start()
	}

	go a.reapLoop(ctx)
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Stop(ctx); err != nil {
			logger.Warn(ctx, "app", "metrics.stop.fail",
				slog.String("err", err.Error()),
			)
		}
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// reapLoop retires abandoned sessions on a fixed cadence until the run
// context ends.
func (a *App) reapLoop(ctx context.Context) {
	maxIdle := time.Duration(a.cfg.Bot.SessionMaxIdleMinutes) * time.Minute

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.flows.ReapIdle(ctx, maxIdle)
		}
	}
}
