package flows

import (
	"context"

	"bookingbot/core/telegram/flow"
)

// FlowHelp is the single-step /help flow.
const FlowHelp = "help"

const helpText = "It's just a joke, there is no help available :) Maybe try typing /book?"

// NewHelpFlow builds the help conversation. It terminates immediately.
func NewHelpFlow() *flow.Flow[struct{}] {
	return &flow.Flow[struct{}]{
		Name: FlowHelp,
		Setup: func(ctx context.Context, c *flow.Call[struct{}]) (flow.Result[struct{}], error) {
			if _, err := c.Send(ctx, helpText, nil, false); err != nil {
				return flow.Result[struct{}]{}, err
			}
			return flow.Done[struct{}](), nil
		},
	}
}
