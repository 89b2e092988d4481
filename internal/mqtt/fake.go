package mqtt

import "github.com/sweeney/alarm-radio/internal/alarm"

// FakePublisher records everything published so tests can assert on it.
// The Err fields, when set, are returned instead of recording.
type FakePublisher struct {
	Events         []alarm.Event
	Payloads       [][]byte // wire form of Events
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte // wire form of SystemEvents
	Commands       []Command

	PublishError        error
	PublishSystemError  error
	PublishCommandError error

	Closed    bool
	Connected bool // returned by IsConnected
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the alarm event.
func (f *FakePublisher) Publish(event alarm.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// PublishCommand records the command.
func (f *FakePublisher) PublishCommand(cmd Command) error {
	if f.PublishCommandError != nil {
		return f.PublishCommandError
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

// CommandsFor returns recorded commands with the given action.
func (f *FakePublisher) CommandsFor(action string) []Command {
	var out []Command
	for _, c := range f.Commands {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset returns the fake to its zero state.
func (f *FakePublisher) Reset() { *f = FakePublisher{} }
