package irc

import (
	"errors"
	"fmt"
	"strings"
)

// Privilege is a bit set of channel privileges.
type Privilege int

const (
	Voice  Privilege = 1
	HalfOp Privilege = 2
	Op     Privilege = 4
	Admin  Privilege = 8
	Owner  Privilege = 16
	Oper   Privilege = 32
)

var (
	modePrivileges = map[byte]Privilege{
		'v': Voice,
		'h': HalfOp,
		'o': Op,
		'a': Admin,
		'q': Owner,
		'y': Oper,
		'Y': Oper,
	}
	prefixPrivileges = map[byte]Privilege{
		'+': Voice,
		'%': HalfOp,
		'@': Op,
		'&': Admin,
		'~': Owner,
		'!': Oper,
	}
)

// ModePrivilege returns the privilege granted by a prefix mode letter.
func ModePrivilege(mode byte) (Privilege, bool) {
	p, ok := modePrivileges[mode]
	return p, ok
}

// PrefixPrivilege returns the privilege shown by a nick prefix in NAMES replies.
func PrefixPrivilege(prefix byte) (Privilege, bool) {
	p, ok := prefixPrivileges[prefix]
	return p, ok
}

// SplitNamesPrefix strips every privilege prefix in front of a nick (multi-prefix) and returns the
// combined privileges.
func SplitNamesPrefix(name string, prefixes string) (string, Privilege) {
	var priv Privilege
	for name != "" {
		c := name[0]
		if prefixes != "" && strings.IndexByte(prefixes, c) < 0 {
			break
		}
		p, ok := prefixPrivileges[c]
		if !ok {
			break
		}
		priv |= p
		name = name[1:]
	}
	return name, priv
}

func (p Privilege) String() string {
	names := []string{}
	for _, item := range []struct {
		p    Privilege
		name string
	}{{Oper, "oper"}, {Owner, "owner"}, {Admin, "admin"}, {Op, "op"}, {HalfOp, "halfop"}, {Voice, "voice"}} {
		if p&item.p != 0 {
			names = append(names, item.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

var ErrModeMissingParam = errors.New("mode is missing its parameter")

// ModeChange is a single mode being set or unset.
type ModeChange struct {
	Adding    bool
	Mode      byte
	Param     string
	HasParam  bool
	Privilege Privilege
}

// ModeChanges is the result of parsing a mode line.
type ModeChanges struct {
	Changes  []ModeChange
	Ignored  []byte
	Leftover []string
}

// Privileges returns only the changes that affect user privileges.
func (m ModeChanges) Privileges() []ModeChange {
	out := []ModeChange{}
	for _, c := range m.Changes {
		if c.Privilege != 0 {
			out = append(out, c)
		}
	}
	return out
}

// ModeParser turns a MODE modestring and its parameters into individual changes.
type ModeParser struct {
	ChanModes   ChanModes
	PrefixModes string
}

func NewModeParser(chanModes ChanModes, prefix Prefix) *ModeParser {
	return &ModeParser{
		ChanModes:   chanModes,
		PrefixModes: prefix.Modes,
	}
}

func (p *ModeParser) takesParam(mode byte, adding bool) (bool, bool) {
	switch {
	case strings.IndexByte(p.PrefixModes, mode) >= 0:
		return true, true
	case strings.IndexByte(p.ChanModes.A, mode) >= 0, strings.IndexByte(p.ChanModes.B, mode) >= 0:
		return true, true
	case strings.IndexByte(p.ChanModes.C, mode) >= 0:
		return adding, true
	case strings.IndexByte(p.ChanModes.D, mode) >= 0:
		return false, true
	}
	return false, false
}

// Parse parses a modestring like "+ov-b" with its parameters.
func (p *ModeParser) Parse(modestring string, params []string) (ModeChanges, error) {
	result := ModeChanges{}
	adding := true
	idx := 0

	for i := 0; i < len(modestring); i++ {
		c := modestring[i]
		switch c {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}

		needsParam, known := p.takesParam(c, adding)
		if !known {
			result.Ignored = append(result.Ignored, c)
			continue
		}

		change := ModeChange{Adding: adding, Mode: c}
		if strings.IndexByte(p.PrefixModes, c) >= 0 {
			change.Privilege, _ = ModePrivilege(c)
		}

		if needsParam {
			if idx >= len(params) {
				return result, fmt.Errorf("%w: %c", ErrModeMissingParam, c)
			}
			change.Param = params[idx]
			change.HasParam = true
			idx++
		}

		result.Changes = append(result.Changes, change)
	}

	if idx < len(params) {
		result.Leftover = params[idx:]
	}

	return result, nil
}
