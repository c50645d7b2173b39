package adapter

import (
	"errors"
	"slices"
	"strings"

	"github.com/skosovsky/aibridge"
)

// ErrStreamEventIgnored is returned by StreamAssembler for events that reference an unopened
// block or carry a delta of the wrong kind. Vendors report it as a diagnostic and keep reading.
var ErrStreamEventIgnored = errors.New("adapter: stream event ignored")

// BlockKind is the kind of a block open in a stream.
type BlockKind int

// Block kinds.
const (
	KindText BlockKind = iota + 1
	KindThinking
	KindToolUse
)

func (k BlockKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindThinking:
		return "thinking"
	case KindToolUse:
		return "tool_use"
	default:
		return "unknown"
	}
}

type partialBlock struct {
	kind BlockKind
	id   string
	name string
	args strings.Builder
}

// StreamAssembler rebuilds content blocks from indexed stream events. It belongs to one stream
// and is not safe for concurrent use.
//
// Text and thinking deltas are emitted one-for-one as they arrive. Tool-use argument fragments
// are buffered and emitted once, as a complete ToolUseBlock, when the block closes.
type StreamAssembler struct {
	open map[int]*partialBlock
}

// NewStreamAssembler returns an empty assembler.
func NewStreamAssembler() *StreamAssembler {
	return &StreamAssembler{open: make(map[int]*partialBlock)}
}

// Open starts a block at index. id and name are used by tool-use blocks only.
// Reopening an index discards its previous state.
func (s *StreamAssembler) Open(index int, kind BlockKind, id, name string) {
	s.open[index] = &partialBlock{kind: kind, id: id, name: name}
}

// IsOpen reports whether a block is open at index.
func (s *StreamAssembler) IsOpen(index int) bool {
	_, ok := s.open[index]
	return ok
}

// Delta applies a fragment to the block at index. It returns the block to emit, or nil while
// a tool-use block is buffering.
func (s *StreamAssembler) Delta(index int, kind BlockKind, fragment string) (aibridge.ContentBlock, error) {
	p, ok := s.open[index]
	if !ok || p.kind != kind {
		return nil, ErrStreamEventIgnored
	}
	switch kind {
	case KindText:
		return aibridge.TextBlock{Text: fragment}, nil
	case KindThinking:
		return aibridge.ThinkingBlock{Thinking: fragment}, nil
	default:
		p.args.WriteString(fragment)
		return nil, nil
	}
}

// Signature returns a thinking block carrying the signature of the thinking block at index.
func (s *StreamAssembler) Signature(index int, signature string) (aibridge.ContentBlock, error) {
	p, ok := s.open[index]
	if !ok || p.kind != KindThinking {
		return nil, ErrStreamEventIgnored
	}
	return aibridge.ThinkingBlock{Signature: signature}, nil
}

// Close ends the block at index. A tool-use block is returned complete; text and thinking
// blocks return nil because their content was already emitted.
func (s *StreamAssembler) Close(index int) (aibridge.ContentBlock, error) {
	p, ok := s.open[index]
	if !ok {
		return nil, ErrStreamEventIgnored
	}
	delete(s.open, index)
	if p.kind != KindToolUse {
		return nil, nil
	}
	return aibridge.ToolUseBlock{ID: p.id, Name: p.name, Input: p.args.String()}, nil
}

// CloseAll closes every open block in index order and returns the completed tool-use blocks.
// Vendors without per-block stop events call it when the response finishes.
func (s *StreamAssembler) CloseAll() []aibridge.ContentBlock {
	indexes := make([]int, 0, len(s.open))
	for i := range s.open {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	var out []aibridge.ContentBlock
	for _, i := range indexes {
		if b, _ := s.Close(i); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// StreamErrorPolicy decides how a stream ends after a transport failure.
type StreamErrorPolicy int

const (
	// SwallowStreamError yields the error block and ends the stream without an error.
	SwallowStreamError StreamErrorPolicy = iota
	// ReraiseStreamError yields the error block, then the original error.
	ReraiseStreamError
)

// Fail ends a stream according to p.
func (p StreamErrorPolicy) Fail(yield func(aibridge.ContentBlock, error) bool, block aibridge.ErrorBlock, err error) {
	if !yield(block, nil) {
		return
	}
	if p == ReraiseStreamError && err != nil {
		yield(nil, err)
	}
}
