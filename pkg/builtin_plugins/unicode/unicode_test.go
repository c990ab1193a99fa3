package unicode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jirwin/quirc/pkg/quirctest"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		r    rune
		want string
	}{
		{name: "interrobang", r: '‽', want: "U+203D INTERROBANG (‽)"},
		{name: "ascii", r: 'A', want: "U+0041 LATIN CAPITAL LETTER A (A)"},
		{name: "combining", r: '́', want: "U+0301 COMBINING ACUTE ACCENT (◌́)"},
		{name: "astral", r: '\U0001F600', want: "U+1F600 GRINNING FACE (\U0001F600)"},
		{name: "control", r: 0x07, want: "U+0007 (No name found)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, describe(tt.r))
		})
	}
}

func TestCodepoint(t *testing.T) {
	b := quirctest.New(t)
	b.Register(Register())

	tests := []struct {
		text string
		want string
	}{
		{text: ".u 203D", want: "PRIVMSG #channel :U+203D INTERROBANG (‽)"},
		{text: ".u U+203d", want: "PRIVMSG #channel :U+203D INTERROBANG (‽)"},
		{text: ".u ‽", want: "PRIVMSG #channel :U+203D INTERROBANG (‽)"},
		{text: ".u 7", want: "PRIVMSG #channel :U+0037 DIGIT SEVEN (7)"},
		{text: ".u", want: "PRIVMSG #channel :Alice: What code point do you want me to look up?"},
		{text: ".u nope", want: "PRIVMSG #channel :Alice: That's not a valid code point."},
		{text: ".u D800", want: "PRIVMSG #channel :Alice: That's not a valid code point."},
		{text: ".u 110000", want: "PRIVMSG #channel :Alice: That's not a valid code point."},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b.ClearSent()
			b.Say("Alice", tt.text)
			require.Equal(t, []string{tt.want}, b.Sent())
		})
	}
}
