package router

import (
	"time"

	"bookingbot/core/logger"
	tg "bookingbot/core/telegram"
	"bookingbot/core/telegram/envelope"
	"bookingbot/core/telegram/flow"
	tghelpers "bookingbot/core/telegram/helpers"

	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Routes binds every registered command plus the text/photo/callback
// catch-alls to the flow dispatcher. Each endpoint normalizes the update
// into an envelope and hands it to Dispatcher.Route.
func Routes(d *flow.Dispatcher) []tg.Route {
	commands := d.Commands()
	routes := make([]tg.Route, 0, len(commands)+3)

	for _, cmd := range commands {
		routes = append(routes, tg.Route{
			Endpoint: "/" + cmd.Name,
			Handler:  dispatchHandler(d, "command."+cmd.Name),
		})
	}

	routes = append(routes,
		tg.Route{Endpoint: tele.OnText, Handler: dispatchHandler(d, "message.text")},
		tg.Route{Endpoint: tele.OnPhoto, Handler: dispatchHandler(d, "message.photo")},
		tg.Route{Endpoint: tele.OnCallback, Handler: callbackHandler(d)},
	)

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(commands)),
	)

	return routes
}

// Menu converts the registered commands into the Telegram command menu.
func Menu(d *flow.Dispatcher) []tele.Command {
	commands := d.Commands()
	menu := make([]tele.Command, 0, len(commands))
	for _, cmd := range commands {
		desc := cmd.Description
		if desc == "" {
			desc = cmd.Name
		}
		menu = append(menu, tele.Command{Text: "/" + cmd.Name, Description: desc})
	}
	return menu
}

func dispatchHandler(d *flow.Dispatcher, name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		env, err := envelope.Parse(c.Update())
		if err != nil {
			// Malformed events are dropped without a reply.
			logger.Warn(tghelpers.BuildContext(c), "tg", "update.dropped",
				slog.String("handler", name),
				slog.String("err", err.Error()),
			)
			return nil
		}

		ctx := tghelpers.WithHandler(c, name)
		return handleWithSummary(c, name, start, func() error {
			return d.Route(ctx, env)
		})
	}
}

func callbackHandler(d *flow.Dispatcher) tele.HandlerFunc {
	inner := dispatchHandler(d, "callback")
	return func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		// Acknowledge the button press before routing so clients stop
		// showing the progress spinner.
		_ = c.Respond()
		return inner(c)
	}
}
