// Package plan computes the ordered string replacements that turn one
// tenant's identity into another's.
package plan

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"site-cloner/internal/model"
)

// Pair replaces From with To.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
	// Force applies the pair even when To already occurs in the value. The
	// Builder sets it on the pair that swaps the placeholder back out, which
	// must never be left behind.
	Force bool `json:"force,omitempty"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%q => %q", p.From, p.To)
}

// Pairs is an ordered plan. Order is significant and must not be changed by
// the caller.
type Pairs []Pair

// Strings renders each pair for logs and reports.
func (ps Pairs) Strings() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

// Builder produces plans for one clone operation. The placeholder token is
// generated once per Builder and reused for every plan it builds.
type Builder struct {
	once        sync.Once
	placeholder string
	newToken    func() string
}

// NewBuilder returns a Builder with a random placeholder source.
func NewBuilder() *Builder {
	return &Builder{newToken: randomToken}
}

func randomToken() string {
	return "__SITE_CLONER_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "__"
}

// Placeholder returns the token used as an intermediate target.
func (b *Builder) Placeholder() string {
	b.once.Do(func() {
		if b.newToken == nil {
			b.newToken = randomToken
		}
		b.placeholder = b.newToken()
	})
	return b.placeholder
}

// Build returns the pairs to apply, in order: asset URL, base URL, table
// prefix. When the new asset URL starts with the new base URL the asset pair
// is split around a placeholder so the base-URL pass cannot disturb it.
func (b *Builder) Build(from, to model.Identity) (Pairs, error) {
	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("source identity: %w", err)
	}
	if err := to.Validate(); err != nil {
		return nil, fmt.Errorf("destination identity: %w", err)
	}
	if from == to {
		return nil, fmt.Errorf("%w: source and destination are identical", model.ErrInvalidIdentity)
	}
	if from.Prefix == to.Prefix {
		return nil, fmt.Errorf("%w: source and destination share table prefix %q", model.ErrInvalidIdentity, from.Prefix)
	}

	var pairs Pairs
	if HasCollisionRisk(to) && from.AssetURL != to.AssetURL {
		token := b.Placeholder()
		for _, id := range []model.Identity{from, to} {
			if strings.Contains(id.AssetURL, token) || strings.Contains(id.BaseURL, token) || strings.Contains(id.Prefix, token) {
				return nil, fmt.Errorf("%w: placeholder collides with identity", model.ErrInvalidIdentity)
			}
		}
		pairs = append(pairs,
			Pair{From: from.AssetURL, To: token},
			Pair{From: from.BaseURL, To: to.BaseURL},
			Pair{From: token, To: to.AssetURL, Force: true},
		)
	} else {
		pairs = append(pairs,
			Pair{From: from.AssetURL, To: to.AssetURL},
			Pair{From: from.BaseURL, To: to.BaseURL},
		)
	}
	pairs = append(pairs, Pair{From: from.Prefix, To: to.Prefix})

	return compact(pairs), nil
}

// HasCollisionRisk reports whether the identity's asset URL has its base URL
// as a literal prefix.
func HasCollisionRisk(id model.Identity) bool {
	return id.BaseURL != "" && id.AssetURL != id.BaseURL && strings.HasPrefix(id.AssetURL, id.BaseURL)
}

// compact drops no-op pairs.
func compact(pairs Pairs) Pairs {
	out := pairs[:0]
	for _, p := range pairs {
		if p.From == "" || p.From == p.To {
			continue
		}
		out = append(out, p)
	}
	return out
}
