//go:build unix

package jobserver

import "testing"

func TestExtractAuthVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		makeflags string
		want      string
	}{
		{name: "empty", makeflags: "", want: ""},
		{name: "blanks only", makeflags: "  \t ", want: ""},
		{name: "no jobserver words", makeflags: "-k -j8 --output-sync", want: ""},
		{name: "auth key", makeflags: "--jobserver-auth=3,4", want: "3,4"},
		{name: "legacy fds key", makeflags: "--jobserver-fds=3,4", want: "3,4"},
		{name: "auth beats fds", makeflags: "--jobserver-fds=1,2 --jobserver-auth=3,4", want: "3,4"},
		{name: "auth beats fds regardless of order", makeflags: "--jobserver-auth=3,4 --jobserver-fds=1,2", want: "3,4"},
		{name: "last auth wins", makeflags: "--jobserver-auth=1,2 --jobserver-auth=3,4", want: "3,4"},
		{name: "last fds wins", makeflags: "--jobserver-fds=1,2 --jobserver-fds=3,4", want: "3,4"},
		{name: "empty auth value falls back to fds", makeflags: "--jobserver-auth= --jobserver-fds=3,4", want: "3,4"},
		{name: "surrounded by other flags", makeflags: "-j8 --jobserver-auth=fifo:/tmp/x -k", want: "fifo:/tmp/x"},
		{name: "tab separated", makeflags: "-k\t--jobserver-auth=5,6", want: "5,6"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := extractAuth(tt.makeflags); got != tt.want {
				t.Fatalf("extractAuth(%q) = %q, want %q", tt.makeflags, got, tt.want)
			}
		})
	}
}
