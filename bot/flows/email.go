package flows

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"bookingbot/bot/storage"
	"bookingbot/core/telegram/flow"
	"bookingbot/core/telegram/format"
)

// FlowEmail is the email registration flow, reachable via /start and
// /reset_email.
const FlowEmail = "reset_email"

// StepSetEmail waits for the email address.
const StepSetEmail = "set_email"

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// NewEmailFlow builds the registration conversation: greet, ask for an
// institutional email, validate until one matches, persist the user.
// There is no retry limit; the step re-prompts until it succeeds or the
// session is superseded or reaped.
func NewEmailFlow(users storage.UserStore, domain string) *flow.Flow[storage.User] {
	return &flow.Flow[storage.User]{
		Name: FlowEmail,
		Setup: func(ctx context.Context, c *flow.Call[storage.User]) (flow.Result[storage.User], error) {
			name, err := format.EscapeMarkdown(c.Env.SenderName(), format.MarkdownV1)
			if err != nil {
				name = c.Env.Username
			}
			greeting := fmt.Sprintf("Greetings, %s, welcome on board!\nWhat is your %s email address?", name, domain)
			if _, err := c.Send(ctx, greeting, nil, false); err != nil {
				return flow.Result[storage.User]{}, err
			}
			return flow.Next[storage.User](StepSetEmail), nil
		},
		Steps: map[string]flow.Handler[storage.User]{
			StepSetEmail: func(ctx context.Context, c *flow.Call[storage.User]) (flow.Result[storage.User], error) {
				email := strings.ToLower(strings.TrimSpace(c.Env.Payload))

				if !emailRe.MatchString(email) || !strings.HasSuffix(email, domain) {
					reprompt := fmt.Sprintf("Your email %s is invalid :(\nPlease enter a valid %s email address.", email, domain)
					if _, err := c.Send(ctx, reprompt, nil, false); err != nil {
						return flow.Result[storage.User]{}, err
					}
					return flow.Stay[storage.User](), nil
				}

				user := storage.User{
					ID:       c.Env.UserID,
					Username: c.Env.Username,
					Email:    email,
				}
				if err := users.Save(ctx, &user); err != nil {
					return flow.Result[storage.User]{}, flow.StorageFault(err)
				}

				done := fmt.Sprintf("Your email %s is registered!\nHow may I help you? (type /help for more info)", email)
				if _, err := c.Send(ctx, done, nil, false); err != nil {
					return flow.Result[storage.User]{}, err
				}
				return flow.Done[storage.User]().WithData(user), nil
			},
		},
	}
}
