package unicode

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/runenames"

	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

const dottedCircle = "◌"

// parseCodePoint reads a single character, or a hex code point with an optional U+ prefix.
func parseCodePoint(arg string) (rune, bool) {
	if utf8.RuneCountInString(arg) == 1 {
		r, _ := utf8.DecodeRuneInString(arg)
		return r, r != utf8.RuneError
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(arg, "U+"), "u+")
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || n > unicode.MaxRune || (n >= 0xD800 && n <= 0xDFFF) {
		return 0, false
	}
	return rune(n), true
}

// describe formats r as "U+203D INTERROBANG (‽)". Combining marks are shown on a dotted circle.
func describe(r rune) string {
	point := fmt.Sprintf("U+%04X", r)

	name := runenames.Name(r)
	if name == "" || strings.HasPrefix(name, "<") {
		return point + " (No name found)"
	}

	if unicode.In(r, unicode.Mn, unicode.Me) {
		return fmt.Sprintf("%s %s (%s%c)", point, name, dottedCircle, r)
	}
	return fmt.Sprintf("%s %s (%c)", point, name, r)
}

func codepointCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	arg := strings.TrimSpace(msg.Trigger.Group(2))
	if arg == "" {
		msg.Helper.Reply("What code point do you want me to look up?") //nolint:errcheck
		return rules.ErrNoLimit
	}

	r, ok := parseCodePoint(arg)
	if !ok {
		msg.Helper.Reply("That's not a valid code point.") //nolint:errcheck
		return rules.ErrNoLimit
	}

	return msg.Helper.Say(describe(r))
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"unicode",
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("u", codepointCommand,
				rules.WithDoc("Looks up a Unicode character by code point or by the character itself."),
				rules.WithExamples(
					rules.Example{Text: ".u 203D", Results: []string{"U+203D INTERROBANG (‽)"}},
					rules.Example{Text: ".u ‽", Results: []string{"U+203D INTERROBANG (‽)"}},
				),
			),
		),
	)
}
