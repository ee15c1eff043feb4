package router

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// helpText renders Telegram-friendly help in HTML parse mode.
func (m *CommandManager) helpText(path []string) string {
	m.mu.RLock()
	root := m.root
	alias := m.alias
	m.mu.RUnlock()

	// Walk to requested node.
	cur := root
	full := make([]string, 0, len(path))
	for _, p := range path {
		n, ok := cur.child(p)
		if !ok {
			// maybe it's an alias
			if leaf, ok2 := alias[p]; ok2 && leaf != nil && leaf.cmd != nil {
				cur = leaf
				full = splitRoute(leaf.cmd.Route)
				break
			}
			return "unknown command, try <code>/help</code>"
		}
		cur = n
		full = append(full, p)
	}

	if len(path) == 0 {
		return m.helpTopHTML(root)
	}
	return m.helpNodeHTML(cur, full)
}

func (m *CommandManager) helpTopHTML(root *cmdNode) string {
	names := root.childNames()
	rows := make([]topRow, 0, len(names))
	for _, name := range names {
		n, _ := root.child(name)
		if n == nil {
			continue
		}
		rows = append(rows, topRow{name: name, desc: summarizeNodeDesc(n), lock: nodeIsOwnerOnly(n)})
	}
	// Owner-only commands at the bottom, alphabetical within groups.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].lock != rows[j].lock {
			return !rows[i].lock && rows[j].lock
		}
		return rows[i].name < rows[j].name
	})

	lines := []string{
		"<b>Commands</b>",
		"Use <code>/help &lt;cmd&gt;</code> for details.",
		"",
	}
	for _, r := range rows {
		suffix := ""
		if r.desc != "" {
			suffix = " — " + html.EscapeString(r.desc)
		}
		prefix := "• "
		if r.lock {
			prefix = "• 🔒 "
		}
		lines = append(lines, prefix+"<code>/"+html.EscapeString(r.name)+"</code>"+suffix)
	}
	return strings.Join(lines, "\n")
}

type topRow struct {
	name string
	desc string
	lock bool
}

func (m *CommandManager) helpNodeHTML(cur *cmdNode, full []string) string {
	title := "/" + strings.Join(full, " ")
	lines := []string{fmt.Sprintf("<b>Help</b> <code>%s</code>", html.EscapeString(title))}

	if cur != nil && cur.cmd != nil {
		c := cur.cmd
		if d := strings.TrimSpace(c.Description); d != "" {
			lines = append(lines, html.EscapeString(d))
		}
		if c.Access == AccessOwnerOnly {
			lines = append(lines, "🔒 <i>owner only</i>")
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			lines = append(lines, "", "<b>Usage</b>", "<code>"+html.EscapeString(u)+"</code>")
		}
		if len(c.Aliases) > 0 {
			aliases := make([]string, 0, len(c.Aliases))
			for _, a := range c.Aliases {
				if a = strings.TrimSpace(a); a != "" {
					aliases = append(aliases, "/"+a)
				}
			}
			if len(aliases) > 0 {
				sort.Strings(aliases)
				lines = append(lines, "", "<b>Aliases</b> <code>"+html.EscapeString(strings.Join(aliases, " "))+"</code>")
			}
		}
	} else {
		lines = append(lines, "Command group (has subcommands).")
	}

	if cur != nil && len(cur.children) > 0 {
		lines = append(lines, "", "<b>Subcommands</b>")
		for _, name := range cur.childNames() {
			n, _ := cur.child(name)
			if n == nil {
				continue
			}
			path := append(append([]string(nil), full...), name)
			cmd := "/" + strings.Join(path, " ")
			suffix := ""
			if desc := summarizeNodeDesc(n); desc != "" {
				suffix = " — " + html.EscapeString(desc)
			}
			lines = append(lines, "• <code>"+html.EscapeString(cmd)+"</code>"+suffix)
		}
	}

	return strings.Join(lines, "\n")
}

func summarizeNodeDesc(n *cmdNode) string {
	if n == nil {
		return ""
	}
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	max := 3
	if len(kids) < max {
		max = len(kids)
	}
	s := strings.Join(kids[:max], ", ")
	if len(kids) > max {
		s += ", …"
	}
	return "subcommands: " + s
}

func nodeIsOwnerOnly(n *cmdNode) bool {
	if n == nil {
		return false
	}
	if n.cmd != nil {
		return n.cmd.Access == AccessOwnerOnly
	}
	// A group is owner-only when every descendant is.
	ownerOnly := true
	var walk func(x *cmdNode)
	walk = func(x *cmdNode) {
		if x == nil || !ownerOnly {
			return
		}
		if x.cmd != nil && x.cmd.Access == AccessEveryone {
			ownerOnly = false
			return
		}
		for _, ch := range x.children {
			walk(ch)
			if !ownerOnly {
				return
			}
		}
	}
	walk(n)
	return ownerOnly
}
