package llm

import (
	"context"
	"sync"
)

// ScriptedClient replays canned replies in order. It is used to drive tests without a provider.
// Respond, when set, takes precedence and computes a reply from the request.
type ScriptedClient struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Down    bool
	Respond func(messages []Message) (string, error)
	calls   [][]Message
}

// NewScriptedClient returns a client that answers with replies in order, repeating the last one.
func NewScriptedClient(replies ...string) *ScriptedClient {
	return &ScriptedClient{Replies: replies}
}

func (s *ScriptedClient) Complete(ctx context.Context, messages []Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, append([]Message(nil), messages...))
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Down {
		return "", ErrUnavailable
	}
	if s.Respond != nil {
		return s.Respond(messages)
	}
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Replies) == 0 {
		return "", nil
	}
	i := len(s.calls) - 1
	if i >= len(s.Replies) {
		i = len(s.Replies) - 1
	}
	return s.Replies[i], nil
}

func (s *ScriptedClient) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.Down
}

func (s *ScriptedClient) Name() string { return "scripted" }

// Calls returns the number of Complete calls made so far.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Call returns the messages of the i-th Complete call.
func (s *ScriptedClient) Call(i int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}
