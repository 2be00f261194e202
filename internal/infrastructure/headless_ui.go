package infrastructure

import (
	"sync"
	"time"

	"github.com/yourusername/httpdl-go/internal/domain"
	"go.uber.org/zap"
)

// UIEvent types
const (
	EventProgress = "progress"
	EventStatus   = "status"
	EventError    = "error"
	EventTrigger  = "trigger"
	EventPrompt   = "prompt"
)

const subscriberBuffer = 64

// UIEvent is one piece of session feedback published to subscribers
type UIEvent struct {
	Type       string            `json:"type"`
	Current    int64             `json:"current,omitempty"`
	Total      int64             `json:"total,omitempty"`
	Message    string            `json:"message,omitempty"`
	Enabled    bool              `json:"enabled,omitempty"`
	PromptKind domain.PromptKind `json:"prompt_kind,omitempty"`
	Target     string            `json:"target,omitempty"`
	Accepted   bool              `json:"accepted,omitempty"`
	Time       time.Time         `json:"time"`
}

// HeadlessUI implements domain.UI for a server without an operator.
// Prompts are answered from the download policies and every call is
// fanned out to subscribers.
type HeadlessUI struct {
	config *domain.DownloadConfig
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[chan UIEvent]struct{}
}

// NewHeadlessUI creates a headless UI
func NewHeadlessUI(config *domain.DownloadConfig, logger *zap.Logger) *HeadlessUI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeadlessUI{
		config:      config,
		logger:      logger,
		subscribers: make(map[chan UIEvent]struct{}),
	}
}

// Subscribe returns a channel of events and a function that ends the subscription.
// Slow subscribers lose events rather than blocking the session.
func (u *HeadlessUI) Subscribe() (<-chan UIEvent, func()) {
	ch := make(chan UIEvent, subscriberBuffer)

	u.mu.Lock()
	u.subscribers[ch] = struct{}{}
	u.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			u.mu.Lock()
			delete(u.subscribers, ch)
			u.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscriptions
func (u *HeadlessUI) Subscribers() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.subscribers)
}

// Confirm answers from the configured policy
func (u *HeadlessUI) Confirm(prompt domain.Prompt) bool {
	var policy string
	switch prompt.Kind {
	case domain.PromptOverwrite:
		policy = u.config.Overwrite
	case domain.PromptRedirect:
		policy = u.config.FollowRedirects
	}
	accepted := policy == domain.PolicyAlways

	u.logger.Info("Prompt answered by policy",
		zap.String("kind", string(prompt.Kind)),
		zap.String("target", prompt.Target),
		zap.String("policy", policy),
		zap.Bool("accepted", accepted))

	u.publish(UIEvent{
		Type:       EventPrompt,
		Message:    prompt.Message,
		PromptKind: prompt.Kind,
		Target:     prompt.Target,
		Accepted:   accepted,
	})
	return accepted
}

// SetProgress publishes progress
func (u *HeadlessUI) SetProgress(current, total int64) {
	u.publish(UIEvent{Type: EventProgress, Current: current, Total: total})
}

// ShowStatus publishes a status message
func (u *HeadlessUI) ShowStatus(message string) {
	u.logger.Info(message)
	u.publish(UIEvent{Type: EventStatus, Message: message})
}

// ShowError publishes an error message
func (u *HeadlessUI) ShowError(message string) {
	u.logger.Warn(message)
	u.publish(UIEvent{Type: EventError, Message: message})
}

// SetTriggerEnabled publishes the trigger state
func (u *HeadlessUI) SetTriggerEnabled(enabled bool) {
	u.publish(UIEvent{Type: EventTrigger, Enabled: enabled})
}

func (u *HeadlessUI) publish(event UIEvent) {
	event.Time = time.Now()

	u.mu.RLock()
	defer u.mu.RUnlock()
	for ch := range u.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
