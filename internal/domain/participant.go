package domain

import (
	"github.com/pkg/errors"
)

type Role int

const (
	RoleHead Role = iota
	RoleMiddle
	RoleTail
)

func (r Role) String() string {
	switch r {
	case RoleHead:
		return "head"
	case RoleMiddle:
		return "middle"
	case RoleTail:
		return "tail"
	}

	return "unknown"
}

// RoleFor derives the role of position index in a chain of n participants.
func RoleFor(index, n int) Role {
	switch {
	case index == 0:
		return RoleHead
	case index == n-1:
		return RoleTail
	default:
		return RoleMiddle
	}
}

// Authority names a signing capability; the key material stays with the Signer.
type Authority int

const (
	AuthorityActive Authority = iota
	AuthorityPosting
)

func (a Authority) String() string {
	if a == AuthorityPosting {
		return "posting"
	}

	return "active"
}

type Mode string

const (
	ModeTransfer Mode = "transfer"
	ModeBurn     Mode = "burn"
)

// DefaultSlotTag is the profile field a mode publishes its pending transaction under.
func (m Mode) DefaultSlotTag() string {
	return string(m) + "-tx"
}

// Participant is one position in the fixed signing chain.
type Participant struct {
	Index    int
	Identity string
	Chain    []string
}

func NewParticipant(identity string, chain []string) (Participant, error) {
	if len(chain) == 0 {
		return Participant{}, errors.New("empty chain")
	}
	index := -1
	seen := make(map[string]struct{}, len(chain))
	for i, name := range chain {
		if _, ok := seen[name]; ok {
			return Participant{}, errors.Errorf("duplicate chain member %q", name)
		}
		seen[name] = struct{}{}
		if name == identity {
			index = i
		}
	}
	if index < 0 {
		return Participant{}, errors.Errorf("%q is not a chain member", identity)
	}

	return Participant{
		Index:    index,
		Identity: identity,
		Chain:    append([]string(nil), chain...),
	}, nil
}

func (p Participant) Role() Role {
	return RoleFor(p.Index, len(p.Chain))
}

// Predecessor returns the identity back positions earlier in the chain.
func (p Participant) Predecessor(back int) (string, bool) {
	i := p.Index - back
	if back <= 0 || i < 0 {
		return "", false
	}

	return p.Chain[i], true
}
