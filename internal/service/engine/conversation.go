package engine

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/opsbot/internal/core"
)

// Conversation owns the ordered message list of one session. Messages are
// immutable once appended; trimming only affects the view handed to the
// provider, never the stored sequence.
type Conversation struct {
	mu          sync.RWMutex
	system      []core.Message
	msgs        []core.Message
	tokenBudget int
	turns       int
}

func NewConversation(system []core.Message, tokenBudget int) *Conversation {
	return &Conversation{
		system:      system,
		tokenBudget: tokenBudget,
	}
}

func (c *Conversation) Append(msg core.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

// NextTurn increments and returns the turn counter.
func (c *Conversation) NextTurn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns++
	return c.turns
}

// Messages returns the full chronological sequence including system
// messages. The slice is a copy.
func (c *Conversation) Messages() []core.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.Message, 0, len(c.system)+len(c.msgs))
	out = append(out, c.system...)
	out = append(out, c.msgs...)
	return out
}

// Len reports the number of non-system messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.msgs)
}

// ForProvider builds the view sent to the model: system messages always
// survive, then the newest messages that fit the token budget, oldest
// dropped first, with orphaned tool messages removed afterwards.
func (c *Conversation) ForProvider() []core.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	budget := c.tokenBudget
	for _, m := range c.system {
		budget -= messageTokens(m)
	}

	// Walk backwards keeping the newest messages that fit.
	kept := 0
	for i := len(c.msgs) - 1; i >= 0; i-- {
		cost := messageTokens(c.msgs[i])
		if budget-cost < 0 && kept > 0 {
			break
		}
		budget -= cost
		kept++
	}

	window := c.msgs[len(c.msgs)-kept:]
	out := make([]core.Message, 0, len(c.system)+len(window))
	out = append(out, c.system...)
	out = append(out, sanitizeToolCalls(window)...)
	return out
}

var (
	tkOnce sync.Once
	tk     *tiktoken.Tiktoken
)

func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		var err error
		tk, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			panic("failed to load tiktoken: " + err.Error())
		}
	})
	return tk
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(getTokenizer().Encode(text, nil, nil))
}

// messageTokens approximates the provider-side cost of one message:
// content plus serialized tool call arguments, with a small per-message
// overhead for role framing.
func messageTokens(m core.Message) int {
	const perMessageOverhead = 4
	n := perMessageOverhead + countTokens(m.Content)
	for _, tc := range m.ToolCalls {
		n += countTokens(tc.Function.Name) + countTokens(tc.Function.Arguments)
	}
	return n
}
