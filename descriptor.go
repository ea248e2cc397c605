//go:build unix

package jobserver

import (
	"fmt"
	"strings"
)

// Kind classifies how a jobserver descriptor represents the token pool.
type Kind int

const (
	// KindNone means no jobserver descriptor was configured.
	KindNone Kind = iota
	// KindPipe is a descriptor pair "R,W" inherited from the parent.
	KindPipe
	// KindFifo is a named pipe on the filesystem, "fifo:<path>".
	KindFifo
	// KindUnrecognized is a descriptor that matched neither form.
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPipe:
		return "pipe"
	case KindFifo:
		return "fifo"
	default:
		return "unrecognized"
	}
}

// Descriptor is the parsed form of a --jobserver-auth value.
// ReadFD/WriteFD hold -1 unless the descriptor is a pipe pair.
type Descriptor struct {
	Raw      string
	FifoPath string
	ReadFD   int
	WriteFD  int

	kind Kind
}

// Kind reports the descriptor classification.
func (d Descriptor) Kind() Kind { return d.kind }

// ParseMakeflags extracts and classifies the jobserver descriptor from a
// MAKEFLAGS-style string. It is a pure function; binding to the descriptor
// happens in New.
func ParseMakeflags(makeflags string) Descriptor {
	d := Descriptor{ReadFD: -1, WriteFD: -1}

	d.Raw = extractAuth(makeflags)
	if d.Raw == "" {
		return d
	}

	if strings.HasPrefix(d.Raw, fifoPrefix) {
		d.kind = KindFifo
		d.FifoPath = d.Raw[len(fifoPrefix):]
		return d
	}

	// Mirrors make's own scanf("%d,%d") parse, including its tolerance for
	// whitespace around the numbers.
	var rfd, wfd int
	if n, _ := fmt.Sscanf(d.Raw, "%d,%d", &rfd, &wfd); n == 2 {
		d.kind = KindPipe
		d.ReadFD = rfd
		d.WriteFD = wfd
		return d
	}

	d.kind = KindUnrecognized
	return d
}
