package chatcontext

import "slices"

// DefaultBudgetFraction is the share of a model context window handed to
// the prompt; the remainder is left for the completion.
const DefaultBudgetFraction = 0.8

// BudgetForWindow derives a token budget from a model context window.
// A fraction outside (0, 1] falls back to DefaultBudgetFraction.
func BudgetForWindow(contextWindow int, fraction float64) int {
	if contextWindow <= 0 {
		return 0
	}
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultBudgetFraction
	}
	return int(float64(contextWindow) * fraction)
}

// ForceRule names the message the budgeter keeps, in truncated form if
// needed, when the budget runs out before that message was accepted.
type ForceRule interface {
	// Matches reports whether m is a message the rule protects.
	Matches(m Message) bool
	// Satisfied reports whether the accepted non-system messages already
	// contain a protected message.
	Satisfied(accepted []Message) bool
}

type forceLatestUser struct{}

func (forceLatestUser) Matches(m Message) bool { return m.Role == RoleUser }

func (forceLatestUser) Satisfied(accepted []Message) bool {
	return slices.ContainsFunc(accepted, func(m Message) bool { return m.Role == RoleUser })
}

type forceLatestMessage struct{}

func (forceLatestMessage) Matches(Message) bool { return true }

func (forceLatestMessage) Satisfied(accepted []Message) bool { return len(accepted) > 0 }

type forceNone struct{}

func (forceNone) Matches(Message) bool { return false }

func (forceNone) Satisfied([]Message) bool { return true }

var (
	// ForceLatestUser guarantees the most recent user message survives.
	ForceLatestUser ForceRule = forceLatestUser{}
	// ForceLatestMessage guarantees the most recent non-system message
	// survives whatever its role.
	ForceLatestMessage ForceRule = forceLatestMessage{}
	// ForceNone drops whatever does not fit.
	ForceNone ForceRule = forceNone{}
)

// Result describes the outcome of budgeting a conversation.
type Result struct {
	// Messages holds system messages followed by the accepted conversation
	// in chronological order.
	Messages []Message
	// Tokens is the estimate of Messages.
	Tokens int
	// Dropped counts non-system messages left out.
	Dropped int
	// Truncated is set when one message was cut to fit.
	Truncated bool
	// Overflow is set when the system messages alone exceed the budget.
	// They are kept regardless.
	Overflow bool
}

// Budgeter selects the most recent messages that fit a token budget.
type Budgeter struct {
	estimator Estimator
	force     ForceRule
	marker    string
}

// Option configures a Budgeter.
type Option func(*Budgeter)

// WithEstimator sets the token estimator.
func WithEstimator(est Estimator) Option {
	return func(b *Budgeter) {
		if est != nil {
			b.estimator = est
		}
	}
}

// WithForceRule sets the rule deciding which message survives truncation.
func WithForceRule(rule ForceRule) Option {
	return func(b *Budgeter) {
		if rule != nil {
			b.force = rule
		}
	}
}

// WithMarker sets the truncation marker.
func WithMarker(marker string) Option {
	return func(b *Budgeter) {
		b.marker = marker
	}
}

// NewBudgeter creates a Budgeter using the heuristic estimator and the
// ForceLatestUser rule unless overridden.
func NewBudgeter(opts ...Option) *Budgeter {
	b := &Budgeter{
		estimator: HeuristicEstimator{},
		force:     ForceLatestUser,
		marker:    TruncationMarker,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Estimator returns the estimator used by the budgeter.
func (b *Budgeter) Estimator() Estimator {
	return b.estimator
}

// Trim budgets messages with the default Budgeter.
func Trim(messages []Message, maxTokens int) []Message {
	return NewBudgeter().Trim(messages, maxTokens)
}

// Trim returns the messages selected by Apply.
func (b *Budgeter) Trim(messages []Message, maxTokens int) []Message {
	return b.Apply(messages, maxTokens).Messages
}

// Apply selects messages so their estimate stays within maxTokens.
//
// System messages are always kept. The rest of the conversation is walked
// from newest to oldest and accepted while it fits; the walk stops at the
// first message that does not. If the force rule is not yet satisfied at
// that point, the overflowing message is kept truncated to the remaining
// budget when the rule matches it. Truncation never makes a message more
// expensive: one the marker cannot shrink is kept as is. Otherwise it is skipped and only the next
// older matching message is still considered. The input slice is never
// modified.
func (b *Budgeter) Apply(messages []Message, maxTokens int) Result {
	if len(messages) == 0 {
		return Result{Messages: messages}
	}

	var system, rest []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	systemTokens := EstimateMessages(b.estimator, system)
	if len(rest) == 0 {
		return Result{
			Messages: slices.Clone(messages),
			Tokens:   systemTokens,
			Overflow: overflows(systemTokens, maxTokens),
		}
	}

	if maxTokens <= 0 {
		return Result{
			Messages: system,
			Tokens:   systemTokens,
			Dropped:  len(rest),
			Overflow: overflows(systemTokens, maxTokens),
		}
	}

	total := systemTokens
	// accepted is built newest first and reversed at the end.
	var accepted []Message
	truncated := false
	seeking := false

	for i := len(rest) - 1; i >= 0; i-- {
		msg := rest[i]
		if seeking && !b.force.Matches(msg) {
			continue
		}
		tokens := b.estimator.Estimate(msg.Content)

		if total+tokens <= maxTokens {
			accepted = append(accepted, msg)
			total += tokens
			if seeking {
				break
			}
			continue
		}

		if b.force.Satisfied(accepted) {
			break
		}
		if !b.force.Matches(msg) {
			seeking = true
			continue
		}

		content := TruncateWith(b.estimator, msg.Content, maxTokens-total, b.marker)
		truncated = content != msg.Content
		msg.Content = content
		accepted = append(accepted, msg)
		total += b.estimator.Estimate(content)
		break
	}

	slices.Reverse(accepted)

	out := make([]Message, 0, len(system)+len(accepted))
	out = append(out, system...)
	out = append(out, accepted...)

	return Result{
		Messages:  out,
		Tokens:    total,
		Dropped:   len(rest) - len(accepted),
		Truncated: truncated,
		Overflow:  overflows(systemTokens, maxTokens),
	}
}

func overflows(systemTokens, maxTokens int) bool {
	return systemTokens > 0 && systemTokens > maxTokens
}
