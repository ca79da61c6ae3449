package orchestrator

import "testing"

func TestInputRelPathResolvesAgainstCwdNotRoot(t *testing.T) {
	cases := []struct {
		name string
		p    string
		cwd  string
		root string
		want string
	}{
		{
			name: "relative path under cwd",
			p:    "hello.c",
			cwd:  "/proj/src",
			root: "/proj",
			want: "src/hello.c",
		},
		{
			name: "relative path climbing out of cwd but still under root",
			p:    "../include/foo.h",
			cwd:  "/proj/src",
			root: "/proj",
			want: "include/foo.h",
		},
		{
			name: "cwd equal to root",
			p:    "hello.c",
			cwd:  "/proj",
			root: "/proj",
			want: "hello.c",
		},
		{
			name: "absolute path outside root falls back to stripped absolute path",
			p:    "/usr/include/stdio.h",
			cwd:  "/proj/src",
			root: "/proj",
			want: "usr/include/stdio.h",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := inputRelPath(tc.p, tc.cwd, tc.root)
			if got != tc.want {
				t.Fatalf("inputRelPath(%q, %q, %q) = %q, want %q", tc.p, tc.cwd, tc.root, got, tc.want)
			}
		})
	}
}
