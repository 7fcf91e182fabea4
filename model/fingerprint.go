package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/couplex/couplex/internal/utils"
	"github.com/couplex/couplex/sets"
)

// Fingerprint returns a collision-resistant identifier of the model
// structure: sets with their roles, coordinates and filters, tables with
// their kinds, roles and domains, variables with their allocations and
// selections, and problems with their expressions. Persistent stores record
// it so that values written under one structure are never read back under
// another.
func (m *Model) Fingerprint() []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	fmt.Fprintf(h, "model|%s\n", m.name)
	for _, s := range m.sets {
		fmt.Fprintf(h, "set|%s|%s|%s\n", s.Name(), s.Role(), strings.Join(s.Coords(), ","))
		for _, f := range s.FilterNames() {
			coords, _ := s.Filter(f)
			fmt.Fprintf(h, "filter|%s|%s|%s\n", s.Name(), f, strings.Join(coords, ","))
		}
	}
	for _, t := range m.tables {
		names := make([]string, 0, t.Domain().NumSets())
		for _, s := range t.Domain().Sets() {
			names = append(names, s.Name())
		}
		fmt.Fprintf(h, "table|%s|%s|%s|%s\n", t.Name(), t.Kind(), roleString(t.Role()), strings.Join(names, ","))
	}
	for _, v := range m.vars {
		a := v.Allocation()
		fmt.Fprintf(h, "var|%s|%s|%s|%s|%s|%s\n", v.Name(), v.Table().Name(),
			a.Rows, a.Cols, strings.Join(a.Intra, ","), selectionString(v.Selection()))
	}
	for _, p := range m.problems {
		fmt.Fprintf(h, "problem|%s|%s|%d|%t\n", p.Name(), p.Group(), p.Order(), p.Feasibility())
		for _, e := range p.Expressions() {
			fmt.Fprintf(h, "expr|%s|%s\n", e.Label, renderNode(e.Root))
		}
	}
	return h.Sum(nil)
}

// roleString renders a role including its payload, where RoleKind.String only
// names the tag.
func roleString(r Role) string {
	switch r.Kind() {
	case RoleConstant:
		return "constant(" + r.Generator() + ")"
	case RolePerSubproblem:
		names := make([]string, 0, len(r.per))
		for n := range r.per {
			names = append(names, n)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = n + "=" + r.per[n].String()
		}
		return "per(" + strings.Join(parts, ",") + ")"
	default:
		return r.Kind().String()
	}
}

func selectionString(sel sets.Selection) string {
	if len(sel) == 0 {
		return ""
	}
	names := utils.SortedKeys(sel)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + strings.Join(sel[n], "+")
	}
	return strings.Join(parts, ";")
}

// renderNode returns the canonical prefix form of an expression tree.
func renderNode(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	switch t := n.(type) {
	case *Ref:
		b.WriteString(t.Name)
	case *Num:
		b.WriteString(strconv.FormatFloat(t.Value, 'g', -1, 64))
	case *Call:
		b.WriteString(t.Op)
		b.WriteByte('(')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNode(b, a)
		}
		b.WriteByte(')')
	}
}
