package alarm

import "time"

// FakePlayer records playback requests for test assertions.
type FakePlayer struct {
	Powered   bool
	Volume    int
	Volumes   []int // every SetVolume call in order
	Connected []string
	Stops     int

	// ConnectError, if set, will be returned by Connect.
	ConnectError error
}

// SetVolume records the level.
func (p *FakePlayer) SetVolume(level int) {
	p.Volume = level
	p.Volumes = append(p.Volumes, level)
}

// Connect records the URL.
func (p *FakePlayer) Connect(url string) error {
	if p.ConnectError != nil {
		return p.ConnectError
	}
	p.Connected = append(p.Connected, url)
	return nil
}

// Stop counts stop requests.
func (p *FakePlayer) Stop() { p.Stops++ }

// IsPowered reports the recorded power state.
func (p *FakePlayer) IsPowered() bool { return p.Powered }

// SetPowered records the power state.
func (p *FakePlayer) SetPowered(on bool) { p.Powered = on }

// FakeNotifier records display messages.
type FakeNotifier struct {
	Messages []string
}

// ShowMessage records text.
func (n *FakeNotifier) ShowMessage(text string, _ time.Duration) {
	n.Messages = append(n.Messages, text)
}

// Last returns the most recent message, or "".
func (n *FakeNotifier) Last() string {
	if len(n.Messages) == 0 {
		return ""
	}
	return n.Messages[len(n.Messages)-1]
}

// FakeSleep records sleep-timer arms.
type FakeSleep struct {
	Armed []int
}

// Arm records minutes.
func (s *FakeSleep) Arm(minutes int) { s.Armed = append(s.Armed, minutes) }

// Stations is a slice-backed StreamDirectory.
type Stations []Station

// Count returns the number of stations.
func (s Stations) Count() int { return len(s) }

// At returns station i; the caller bounds-checks.
func (s Stations) At(i int) Station { return s[i] }

// MemSettings is an in-memory Settings that counts commits.
type MemSettings struct {
	Registry Registry
	Volume   int
	Commits  int

	// Committed is a copy of Registry taken at the last commit.
	Committed Registry

	// CommitError, if set, will be returned by Commit.
	CommitError error
}

// NewMemSettings returns settings with default alarms and the given volume.
func NewMemSettings(volume int) *MemSettings {
	return &MemSettings{Registry: DefaultRegistry(), Volume: volume}
}

// Slots returns the live registry.
func (m *MemSettings) Slots() *Registry { return &m.Registry }

// UserVolume returns the user volume.
func (m *MemSettings) UserVolume() int { return m.Volume }

// SetUserVolume sets the user volume.
func (m *MemSettings) SetUserVolume(v int) { m.Volume = v }

// Commit snapshots the registry.
func (m *MemSettings) Commit() error {
	if m.CommitError != nil {
		return m.CommitError
	}
	m.Commits++
	m.Committed = m.Registry
	return nil
}
