// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/aksea/PangGuai-Web/internal/api"
	"github.com/aksea/PangGuai-Web/internal/notify"
)

// -- Notifier recorder --

// Notifier records everything reported through the user surface so tests
// can assert on message replacement, control state and log lines.
type Notifier struct {
	mu        sync.Mutex
	messages  map[notify.Region][]string
	statuses  []string
	controls  map[string][]notify.ControlState
	connected []bool
	logLines  []string
}

func NewNotifier() *Notifier {
	return &Notifier{
		messages: make(map[notify.Region][]string),
		controls: make(map[string][]notify.ControlState),
	}
}

func (n *Notifier) Message(region notify.Region, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[region] = append(n.messages[region], text)
}

func (n *Notifier) SetStatus(status string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, status)
}

func (n *Notifier) SetControl(name string, state notify.ControlState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.controls[name] = append(n.controls[name], state)
}

func (n *Notifier) SetConnected(connected bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected = append(n.connected, connected)
}

func (n *Notifier) AppendLog(line string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logLines = append(n.logLines, line)
}

// Messages returns every message reported to a region, in order.
func (n *Notifier) Messages(region notify.Region) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages[region]))
	copy(out, n.messages[region])
	return out
}

// LastMessage returns the occupant of a region's single message slot.
func (n *Notifier) LastMessage(region notify.Region) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := n.messages[region]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// Statuses returns every status pill value, in order.
func (n *Notifier) Statuses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.statuses))
	copy(out, n.statuses)
	return out
}

// ControlStates returns the state transitions observed for a control.
func (n *Notifier) ControlStates(name string) []notify.ControlState {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.ControlState, len(n.controls[name]))
	copy(out, n.controls[name])
	return out
}

// Connectivity returns the indicator transitions, in order.
func (n *Notifier) Connectivity() []bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]bool, len(n.connected))
	copy(out, n.connected)
	return out
}

// LogLines returns the rendered log pane contents.
func (n *Notifier) LogLines() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.logLines))
	copy(out, n.logLines)
	return out
}

// -- Status fetcher mock --

// StatusFetcher mocks the poller's view of the backend.
type StatusFetcher struct {
	mock.Mock
}

func (m *StatusFetcher) UserStatus(ctx context.Context, refresh bool) (api.UserStatus, error) {
	args := m.Called(ctx, refresh)
	if args.Get(0) == nil {
		return api.UserStatus{}, args.Error(1)
	}
	return args.Get(0).(api.UserStatus), args.Error(1)
}

// -- Capture sink mock --

// CaptureSink mocks the bootstrap entry point the interceptor reports to.
type CaptureSink struct {
	mu       sync.Mutex
	captures []Capture
}

// Capture is one reported token.
type Capture struct {
	Token  string
	Source string
}

func (m *CaptureSink) ReportToken(tok, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, Capture{Token: tok, Source: source})
}

// Captures returns every reported token, in order.
func (m *CaptureSink) Captures() []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Capture, len(m.captures))
	copy(out, m.captures)
	return out
}
