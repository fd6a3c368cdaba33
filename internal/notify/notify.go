package notify

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Region identifies the page area a message belongs to. Each region holds
// a single message slot; a new message replaces the previous one.
type Region string

const (
	RegionAuth      Region = "auth"
	RegionDashboard Region = "dashboard"
)

// ControlState mirrors the ready/busy state of a user-facing control.
type ControlState int

const (
	ControlReady ControlState = iota
	ControlDisabled
)

// Known control names.
const (
	ControlSubmitCode = "submit_code"
	ControlStartTask  = "start_task"
	ControlStopTask   = "stop_task"
)

// Notifier is the single surface every component reports through. It is
// deliberately dumb: callers decide what to say, implementations decide
// how to show it.
type Notifier interface {
	// Message replaces the message slot of a region.
	Message(region Region, text string)
	// SetStatus renders the remote task state verbatim into the status pill.
	SetStatus(status string)
	// SetControl flips a named control between ready and disabled.
	SetControl(name string, state ControlState)
	// SetConnected drives the log stream connectivity indicator.
	SetConnected(connected bool)
	// AppendLog appends one rendered log line.
	AppendLog(line string)
}

// Console renders notifications to the terminal through the logger for
// messages and plain stdout for the log pane.
type Console struct {
	log *zap.Logger

	mu       sync.Mutex
	messages map[Region]string
}

// NewConsole creates the default Notifier.
func NewConsole(logger *zap.Logger) *Console {
	return &Console{
		log:      logger.Named("ui"),
		messages: make(map[Region]string),
	}
}

func (c *Console) Message(region Region, text string) {
	c.mu.Lock()
	c.messages[region] = text
	c.mu.Unlock()
	c.log.Info(text, zap.String("region", string(region)))
}

func (c *Console) SetStatus(status string) {
	c.log.Info("Task status", zap.String("status", status))
}

func (c *Console) SetControl(name string, state ControlState) {
	c.log.Debug("Control state changed",
		zap.String("control", name),
		zap.Bool("ready", state == ControlReady))
}

func (c *Console) SetConnected(connected bool) {
	if connected {
		c.log.Info("Log stream connected")
		return
	}
	c.log.Info("Log stream disconnected")
}

func (c *Console) AppendLog(line string) {
	fmt.Println(line)
}
