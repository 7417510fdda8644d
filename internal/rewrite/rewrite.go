// Package rewrite replaces identity strings inside plain text and inside
// serialized values without breaking their length prefixes.
package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"site-cloner/internal/codec"
	"site-cloner/internal/plan"
)

var (
	// ErrKeyCollision is returned under FailOnCollision when a rewritten key
	// lands on a key that is already present.
	ErrKeyCollision = errors.New("rewritten key collides with another key")

	// ErrTooManyLayers is returned when serialized strings nest deeper than
	// Options.MaxLayers.
	ErrTooManyLayers = errors.New("too many nested serialization layers")
)

// KeyCollisionPolicy decides what happens when two distinct keys of one map
// rewrite to the same key.
type KeyCollisionPolicy int

const (
	// LastWriteWins keeps the first entry's position and the last entry's value.
	LastWriteWins KeyCollisionPolicy = iota
	// FailOnCollision aborts the rewrite of the whole value.
	FailOnCollision
)

// ParseKeyCollisionPolicy maps a config string to a policy.
func ParseKeyCollisionPolicy(s string) (KeyCollisionPolicy, error) {
	switch strings.ToLower(s) {
	case "", "last_write_wins", "last-write-wins":
		return LastWriteWins, nil
	case "error", "fail":
		return FailOnCollision, nil
	}
	return LastWriteWins, fmt.Errorf("unknown key collision policy %q", s)
}

// DefaultMaxLayers bounds how many times a string may be found to contain
// another serialized value along one path.
const DefaultMaxLayers = 8

type Options struct {
	KeyCollision KeyCollisionPolicy
	// PreserveFieldNames keeps object field keys, visibility markers
	// included, exactly as decoded.
	PreserveFieldNames bool
	MaxLayers          int
}

// Rewriter applies replacement pairs to values. It holds no per-call state
// and may be shared between goroutines.
type Rewriter struct {
	opts Options
}

func New(opts Options) *Rewriter {
	if opts.MaxLayers <= 0 {
		opts.MaxLayers = DefaultMaxLayers
	}
	return &Rewriter{opts: opts}
}

// ReplaceString applies each pair in order. A pair is skipped when its target
// already occurs in the current string, so re-running a plan is harmless.
// Forced pairs are always applied.
func ReplaceString(s string, pairs []plan.Pair) string {
	for _, p := range pairs {
		if p.From == "" || (!p.Force && strings.Contains(s, p.To)) {
			continue
		}
		s = strings.ReplaceAll(s, p.From, p.To)
	}
	return s
}

// RewriteText rewrites a column value. Serialized text is decoded, rewritten
// and encoded again; anything else is treated as a plain string. A decode
// failure returns the input unchanged together with the error.
func (r *Rewriter) RewriteText(text string, pairs []plan.Pair) (string, error) {
	out, err := r.rewriteString(text, pairs, 0)
	if err != nil {
		return text, err
	}
	return out, nil
}

// Rewrite rewrites an already decoded value.
func (r *Rewriter) Rewrite(v codec.Value, pairs []plan.Pair) (codec.Value, error) {
	return r.rewriteValue(v, pairs, 1)
}

func (r *Rewriter) rewriteString(s string, pairs []plan.Pair, layer int) (string, error) {
	if !codec.IsEncoded(s) {
		return ReplaceString(s, pairs), nil
	}
	if layer >= r.opts.MaxLayers {
		return s, fmt.Errorf("%w (limit %d)", ErrTooManyLayers, r.opts.MaxLayers)
	}
	v, err := codec.Decode(s)
	if err != nil {
		return s, err
	}
	nv, err := r.rewriteValue(v, pairs, layer+1)
	if err != nil {
		return s, err
	}
	return codec.Encode(nv), nil
}

func (r *Rewriter) rewriteValue(v codec.Value, pairs []plan.Pair, layer int) (codec.Value, error) {
	switch t := v.(type) {
	case codec.String:
		s, err := r.rewriteString(string(t), pairs, layer)
		if err != nil {
			return nil, err
		}
		return codec.String(s), nil
	case codec.List:
		out := make(codec.List, len(t))
		for i, elem := range t {
			nv, err := r.rewriteValue(elem, pairs, layer)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case codec.Map:
		entries, err := r.rewriteEntries(t, pairs, layer, true)
		if err != nil {
			return nil, err
		}
		return codec.Map(entries), nil
	case codec.Object:
		fields, err := r.rewriteEntries(t.Fields, pairs, layer, !r.opts.PreserveFieldNames)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", t.Class, err)
		}
		return codec.Object{Class: t.Class, Fields: fields}, nil
	}
	// Numbers, booleans, null, enums, references and custom payloads carry
	// no rewritable text.
	return v, nil
}

func (r *Rewriter) rewriteEntries(entries []codec.Entry, pairs []plan.Pair, layer int, keys bool) ([]codec.Entry, error) {
	newKeys := make([]codec.Value, len(entries))
	newVals := make([]codec.Value, len(entries))
	changed := make([]bool, len(entries))
	groups := make(map[string][]int, len(entries))

	for i, e := range entries {
		newKeys[i] = e.Key
		if ks, ok := e.Key.(codec.String); ok && keys {
			nk, err := r.rewriteString(string(ks), pairs, layer)
			if err != nil {
				return nil, err
			}
			if nk != string(ks) {
				newKeys[i] = codec.String(nk)
				changed[i] = true
			}
		}
		nv, err := r.rewriteValue(e.Value, pairs, layer)
		if err != nil {
			return nil, err
		}
		newVals[i] = nv
		id := codec.KeyString(newKeys[i])
		groups[id] = append(groups[id], i)
	}

	out := make([]codec.Entry, 0, len(entries))
	merged := make(map[string]bool)
	for i := range entries {
		id := codec.KeyString(newKeys[i])
		group := groups[id]
		// Keys repeated verbatim in the input are left alone; only a
		// rewrite can create a collision.
		if len(group) == 1 || !anyChanged(group, changed) {
			out = append(out, codec.Entry{Key: newKeys[i], Value: newVals[i]})
			continue
		}
		if r.opts.KeyCollision == FailOnCollision {
			return nil, fmt.Errorf("%w: %q", ErrKeyCollision, id[2:])
		}
		if merged[id] {
			continue
		}
		merged[id] = true
		last := group[len(group)-1]
		out = append(out, codec.Entry{Key: newKeys[i], Value: newVals[last]})
	}
	return out, nil
}

func anyChanged(group []int, changed []bool) bool {
	for _, i := range group {
		if changed[i] {
			return true
		}
	}
	return false
}
