// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trpc

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Node is either a *Procedure or a *Router.
type Node interface {
	isNode()
}

func (*Procedure) isNode() {}
func (*Router) isNode()    {}

// RouteEntry names one child of a router.
type RouteEntry struct {
	Name string
	Node Node
}

// Route pairs a name with a procedure or a nested router.
func Route(name string, node Node) RouteEntry {
	return RouteEntry{Name: name, Node: node}
}

// Router is a branch of the procedure tree.
type Router struct {
	names    []string
	children map[string]Node
}

// NewRouter composes entries into a router. Names must be unique at this
// level and must not contain '.' or ','.
func NewRouter(entries ...RouteEntry) (*Router, error) {
	r := &Router{children: make(map[string]Node, len(entries))}
	for _, e := range entries {
		if err := r.add(e.Name, e.Node); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRouter is NewRouter for package-level wiring; it panics on error.
func MustRouter(entries ...RouteEntry) *Router {
	r, err := NewRouter(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Merge flattens the children of routers into one router. A name present in
// more than one input is an error.
func Merge(routers ...*Router) (*Router, error) {
	out := &Router{children: make(map[string]Node)}
	for _, r := range routers {
		if r == nil {
			continue
		}
		for _, name := range r.names {
			if err := out.add(name, r.children[name]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (r *Router) add(name string, node Node) error {
	if name == "" {
		return fmt.Errorf("trpc: empty route name")
	}
	if strings.ContainsAny(name, ".,") {
		return fmt.Errorf("trpc: route name %q must not contain '.' or ','", name)
	}
	switch n := node.(type) {
	case *Procedure:
		if n == nil || !n.kind.valid() {
			return fmt.Errorf("trpc: route %q: invalid procedure", name)
		}
	case *Router:
		if n == nil {
			return fmt.Errorf("trpc: route %q: nil router", name)
		}
	default:
		return fmt.Errorf("trpc: route %q: unsupported node %T", name, node)
	}
	if _, dup := r.children[name]; dup {
		return fmt.Errorf("trpc: duplicate route %q", name)
	}
	r.names = append(r.names, name)
	r.children[name] = node
	return nil
}

// Lookup resolves a dotted path such as "hello.greet" to its procedure.
func (r *Router) Lookup(path string) (*Procedure, bool) {
	if path == "" {
		return nil, false
	}
	node := Node(r)
	for _, part := range strings.Split(path, ".") {
		branch, ok := node.(*Router)
		if !ok {
			return nil, false
		}
		if node, ok = branch.children[part]; !ok {
			return nil, false
		}
	}
	p, ok := node.(*Procedure)
	return p, ok
}

// ProcedureInfo describes one leaf of the tree.
type ProcedureInfo struct {
	Path      string
	Kind      Kind
	Protected bool
	Input     reflect.Type
	Output    reflect.Type
}

// Procedures lists every leaf sorted by path.
func (r *Router) Procedures() []ProcedureInfo {
	var out []ProcedureInfo
	r.walk("", func(path string, p *Procedure) {
		out = append(out, ProcedureInfo{
			Path:      path,
			Kind:      p.kind,
			Protected: p.protected,
			Input:     p.input,
			Output:    p.output,
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (r *Router) walk(prefix string, fn func(string, *Procedure)) {
	for _, name := range r.names {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		switch n := r.children[name].(type) {
		case *Procedure:
			fn(path, n)
		case *Router:
			n.walk(path, fn)
		}
	}
}
