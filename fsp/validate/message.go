// Package validate implements the contextual Message/MessageBuilder and the
// FTSO (protocol 100) and FDC (protocol 200) validation engines: given a
// judged voting round and a target entity, it produces the ordered list of
// Messages describing every detected correctness issue.
package validate

import (
	"strconv"
	"strings"

	"flarewatch/fsp/epoch"
	"flarewatch/fsp/round"
)

// Level is a Message's severity, mirroring the source's MessageLevel enum.
type Level int

const (
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelCritical Level = 50
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Message is a structured, already-prefixed log/alert line.
type Message struct {
	Level Level
	Text  string
}

// Builder composes a contextual prefix ("network:<name> round:<id>
// protocol:<ftso|fdc> ") onto plain message text. Never surfaced outside
// the engine; call sites pre-bake context once per round via Copy.
type Builder struct {
	network string
	round   *epoch.VotingEpoch
	proto   *round.Protocol
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// Copy returns an independent builder carrying the same context, so a
// single per-round context can be reused across many Build calls without
// callers mutating each other's state.
func (b *Builder) Copy() *Builder {
	c := *b
	return &c
}

// WithNetwork sets the network name (e.g. "songbird") included in the
// prefix.
func (b *Builder) WithNetwork(name string) *Builder {
	c := b.Copy()
	c.network = name
	return c
}

// WithRound sets the voting round included in the prefix.
func (b *Builder) WithRound(v epoch.VotingEpoch) *Builder {
	c := b.Copy()
	c.round = &v
	return c
}

// WithProtocol sets the protocol included in the prefix.
func (b *Builder) WithProtocol(p round.Protocol) *Builder {
	c := b.Copy()
	c.proto = &p
	return c
}

// Build is the only operation that constructs a Message: it renders the
// prefix from whichever of network/round/protocol are set, omitting the
// rest, and appends text.
func (b *Builder) Build(level Level, text string) Message {
	var s strings.Builder
	if b.network != "" {
		s.WriteString("network:")
		s.WriteString(b.network)
		s.WriteString(" ")
	}
	if b.round != nil {
		s.WriteString("round:")
		s.WriteString(strconv.FormatUint(b.round.ID(), 10))
		s.WriteString(" ")
	}
	if b.proto != nil {
		s.WriteString("protocol:")
		s.WriteString(b.proto.String())
		s.WriteString(" ")
	}
	s.WriteString(text)
	return Message{Level: level, Text: s.String()}
}
