package router

import (
	"reflect"
	"testing"
)

func TestCommandTree(t *testing.T) {
	root := newRoot()
	root.add(splitRoute("dispatch add"), Command{Route: "dispatch add"})
	root.add(splitRoute("dispatch delete"), Command{Route: "dispatch delete"})
	root.add(splitRoute("jobs"), Command{Route: "jobs"})

	n := root.find([]string{"dispatch", "add"})
	if n == nil || n.cmd == nil || n.cmd.Route != "dispatch add" {
		t.Fatalf("find dispatch add = %+v", n)
	}

	// container node: no command, but children
	disp := root.find([]string{"dispatch"})
	if disp == nil || disp.cmd != nil {
		t.Fatalf("dispatch node = %+v", disp)
	}
	if got := disp.childNames(); !reflect.DeepEqual(got, []string{"add", "delete"}) {
		t.Fatalf("childNames = %v", got)
	}

	if root.find([]string{"nope"}) != nil {
		t.Fatal("found unknown route")
	}
	if root.find([]string{"dispatch", "add", "extra"}) != nil {
		t.Fatal("found over-long route")
	}
}

func TestSplitRoute(t *testing.T) {
	if got := splitRoute("  dispatch   add "); !reflect.DeepEqual(got, []string{"dispatch", "add"}) {
		t.Fatalf("splitRoute = %v", got)
	}
	if splitRoute("   ") != nil {
		t.Fatal("blank route split to tokens")
	}
}
