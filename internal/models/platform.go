package models

import (
	"fmt"
	"strings"
)

type Platform uint8

const (
	PlatformSnapchat Platform = 1 << iota
	PlatformInstagram
	PlatformYoutube
)

// AllPlatforms is ordered; iteration over a PlatformSet follows it.
var AllPlatforms = []Platform{PlatformSnapchat, PlatformInstagram, PlatformYoutube}

func (p Platform) String() string {
	switch p {
	case PlatformSnapchat:
		return "snapchat"
	case PlatformInstagram:
		return "instagram"
	case PlatformYoutube:
		return "youtube"
	default:
		return fmt.Sprintf("platform(%d)", uint8(p))
	}
}

func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "snapchat":
		return PlatformSnapchat, nil
	case "instagram":
		return PlatformInstagram, nil
	case "youtube":
		return PlatformYoutube, nil
	default:
		return 0, fmt.Errorf("unknown platform %q", s)
	}
}

func (p Platform) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Platform) UnmarshalText(b []byte) error {
	parsed, err := ParsePlatform(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PlatformSet is a bitset of target platforms.
type PlatformSet uint8

func NewPlatformSet(platforms ...Platform) PlatformSet {
	var set PlatformSet
	for _, p := range platforms {
		set |= PlatformSet(p)
	}
	return set
}

// ParsePlatformSet accepts "all", single names, underscore joined selectors
// such as "snapchat_instagram" and comma separated lists.
func ParsePlatformSet(s string) (PlatformSet, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty platform selector")
	}
	if s == "all" {
		return NewPlatformSet(AllPlatforms...), nil
	}

	var set PlatformSet
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == ',' || r == '+' }) {
		p, err := ParsePlatform(part)
		if err != nil {
			return 0, err
		}
		set |= PlatformSet(p)
	}
	if set == 0 {
		return 0, fmt.Errorf("invalid platform selector %q", s)
	}
	return set, nil
}

func (s PlatformSet) Has(p Platform) bool {
	return s&PlatformSet(p) != 0
}

func (s PlatformSet) Platforms() []Platform {
	var out []Platform
	for _, p := range AllPlatforms {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s PlatformSet) String() string {
	if s == NewPlatformSet(AllPlatforms...) {
		return "all"
	}
	names := make([]string, 0, 3)
	for _, p := range s.Platforms() {
		names = append(names, p.String())
	}
	return strings.Join(names, "_")
}

func (s PlatformSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PlatformSet) UnmarshalText(b []byte) error {
	set, err := ParsePlatformSet(string(b))
	if err != nil {
		return err
	}
	*s = set
	return nil
}
