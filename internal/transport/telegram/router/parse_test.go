package router

import (
	"reflect"
	"testing"
)

func TestTokenizeCommandLine(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`/dispatch add "My Title" --nation=testlandia`, []string{"/dispatch", "add", "My Title", "--nation=testlandia"}},
		{`/dispatch add 'single quoted' --ping`, []string{"/dispatch", "add", "single quoted", "--ping"}},
		{`a \"escaped\" b`, []string{`a`, `"escaped"`, `b`}},
		{"  spaced\t tokens \n", []string{"spaced", "tokens"}},
		{"", nil},
	}
	for _, tc := range cases {
		if got := tokenizeCommandLine(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("tokenize(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	pos, flags, bools := parseFlags([]string{
		"My Title", "--nation=testlandia", "--category", "305", "--ping", "-v",
	})
	if !reflect.DeepEqual(pos, []string{"My Title"}) {
		t.Fatalf("pos = %#v", pos)
	}
	if flags["nation"] != "testlandia" || flags["category"] != "305" {
		t.Fatalf("flags = %#v", flags)
	}
	if !bools["ping"] || !bools["v"] {
		t.Fatalf("bools = %#v", bools)
	}
}

func TestParseFlagsShortCluster(t *testing.T) {
	_, flags, bools := parseFlags([]string{"-abc", "-k", "val", "-x=1"})
	for _, b := range []string{"a", "b", "c"} {
		if !bools[b] {
			t.Fatalf("bools = %#v, missing %q", bools, b)
		}
	}
	if flags["k"] != "val" || flags["x"] != "1" {
		t.Fatalf("flags = %#v", flags)
	}
}

func TestNewReqIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newReqID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty req id: %q", id)
		}
		seen[id] = true
	}
}
