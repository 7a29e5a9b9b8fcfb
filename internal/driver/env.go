// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// environment is an ordered, mutable copy of a process environment handed
// to every child process.
type environment struct {
	keys   []string
	values map[string]string
}

func newEnvironment(environ []string) *environment {
	e := &environment{values: make(map[string]string, len(environ))}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		e.Set(k, v)
	}
	return e
}

func (e *environment) Lookup(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

func (e *environment) Get(key string) string { return e.values[key] }

func (e *environment) Set(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Environ returns KEY=VALUE pairs in first-set order.
func (e *environment) Environ() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.values[k])
	}
	return out
}

// PrependPath puts dirs in front of PATH, keeping their order.
func (e *environment) PrependPath(dirs ...string) {
	if len(dirs) == 0 {
		return
	}
	e.setPath(append(slices.Clone(dirs), e.pathList()...))
}

// AppendPath adds dirs at the end of PATH.
func (e *environment) AppendPath(dirs ...string) {
	if len(dirs) == 0 {
		return
	}
	e.setPath(append(e.pathList(), dirs...))
}

func (e *environment) pathList() []string {
	p := e.Get("PATH")
	if p == "" {
		return nil
	}
	return strings.Split(p, string(os.PathListSeparator))
}

func (e *environment) setPath(dirs []string) {
	e.Set("PATH", strings.Join(dirs, string(os.PathListSeparator)))
}

// Expand replaces {NAME} with the value of NAME. "{{" and "}}" stand for
// literal braces. Unknown names are an error.
func (e *environment) Expand(s string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			out.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			out.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated '{' in %q", s)
			}
			name := s[i+1 : i+1+end]
			v, ok := e.Lookup(name)
			if !ok {
				return "", fmt.Errorf("unknown environment variable %q in %q", name, s)
			}
			out.WriteString(v)
			i += end + 1
		case c == '}':
			return "", fmt.Errorf("single '}' in %q", s)
		default:
			out.WriteByte(c)
		}
	}
	return out.String(), nil
}
