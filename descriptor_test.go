//go:build unix

package jobserver

import "testing"

func TestParseMakeflagsVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		makeflags string
		kind      Kind
		fifo      string
		rfd, wfd  int
	}{
		{name: "empty string", makeflags: "", kind: KindNone, rfd: -1, wfd: -1},
		{name: "no descriptor", makeflags: "-k -j8", kind: KindNone, rfd: -1, wfd: -1},
		{name: "fifo", makeflags: "--jobserver-auth=fifo:foo123", kind: KindFifo, fifo: "foo123", rfd: -1, wfd: -1},
		{name: "fds", makeflags: "--jobserver-auth=18,66", kind: KindPipe, rfd: 18, wfd: 66},
		{name: "legacy fds", makeflags: "--jobserver-fds=18,66", kind: KindPipe, rfd: 18, wfd: 66},
		{name: "unrecognized", makeflags: "--jobserver-auth=bogus", kind: KindUnrecognized, rfd: -1, wfd: -1},
		{name: "single number is unrecognized", makeflags: "--jobserver-auth=18", kind: KindUnrecognized, rfd: -1, wfd: -1},
		{name: "negative pair still parses", makeflags: "--jobserver-auth=-1,-1", kind: KindPipe, rfd: -1, wfd: -1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMakeflags(tt.makeflags)
			if got.Kind() != tt.kind {
				t.Fatalf("Kind() = %v, want %v", got.Kind(), tt.kind)
			}
			if got.FifoPath != tt.fifo {
				t.Fatalf("FifoPath = %q, want %q", got.FifoPath, tt.fifo)
			}
			if got.ReadFD != tt.rfd || got.WriteFD != tt.wfd {
				t.Fatalf("FDs = %d,%d, want %d,%d", got.ReadFD, got.WriteFD, tt.rfd, tt.wfd)
			}
		})
	}
}

func TestParseMakeflagsKeepsRaw(t *testing.T) {
	t.Parallel()
	got := ParseMakeflags("--jobserver-auth=fifo:/tmp/tokens")
	if got.Raw != "fifo:/tmp/tokens" {
		t.Fatalf("Raw = %q, want %q", got.Raw, "fifo:/tmp/tokens")
	}
}
