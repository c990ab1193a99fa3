package spellcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jirwin/quirc/pkg/quirctest"
)

func writeDictionary(t *testing.T, words string) string {
	path := filepath.Join(t.TempDir(), "words")
	require.NoError(t, os.WriteFile(path, []byte(words), 0o600))
	return path
}

func TestSpellcheck(t *testing.T) {
	dict := writeDictionary(t, "# test words\nhello\nHelp\nworld\nspell\nspelled\n\n")
	b := quirctest.New(t, quirctest.WithSection("spellcheck", "dictionary = "+dict, "max_suggestions = 2"))
	b.Register(Register())

	tests := []struct {
		nick string
		text string
		want []string
	}{
		{nick: "Alice", text: ".spell hello", want: []string{"PRIVMSG #channel :hello is spelled correctly."}},
		{nick: "Alice", text: ".spellcheck HELP", want: []string{"PRIVMSG #channel :HELP is spelled correctly."}},
		{nick: "Alice", text: ".spell helo", want: []string{"PRIVMSG #channel :helo is not spelled correctly. Maybe you want one of these spellings: 'hello', 'help'"}},
		{nick: "Alice", text: ".spell zzzzzzzz", want: []string{"PRIVMSG #channel :zzzzzzzz is not spelled correctly, and I have no suggestions."}},
		{nick: "Alice", text: ".spell two words", want: []string{"PRIVMSG #channel :One word at a time, please."}},
		{nick: "Alice", text: ".spell", want: nil},
		{nick: "Alice", text: ".addword quirc", want: nil},
		{nick: quirctest.Admin, text: ".addword Quirc", want: []string{"PRIVMSG #channel :Admin: Added quirc to my word list."}},
		{nick: quirctest.Admin, text: ".addword quirc", want: []string{"PRIVMSG #channel :Admin: quirc is already in my word list."}},
		{nick: quirctest.Owner, text: ".addword world", want: []string{"PRIVMSG #channel :Owner: world is already in my dictionary."}},
		{nick: quirctest.Admin, text: ".addword", want: []string{"PRIVMSG #channel :Admin: Give me one word."}},
		{nick: "Alice", text: ".spell quirc", want: []string{"PRIVMSG #channel :quirc is spelled correctly."}},
		{nick: "Alice", text: ".spell quirk", want: []string{"PRIVMSG #channel :quirk is not spelled correctly. Maybe you want one of these spellings: 'quirc'"}},
		{nick: "Alice", text: ".delword quirc", want: nil},
		{nick: quirctest.Admin, text: ".delword quirc", want: []string{"PRIVMSG #channel :Admin: Removed quirc from my word list."}},
		{nick: quirctest.Admin, text: ".delword quirc", want: []string{"PRIVMSG #channel :Admin: quirc isn't in my word list."}},
		{nick: "Alice", text: ".spell quirc", want: []string{"PRIVMSG #channel :quirc is not spelled correctly, and I have no suggestions."}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b.ClearSent()
			b.Say(tt.nick, tt.text)
			if tt.want == nil {
				require.Empty(t, b.Sent())
				return
			}
			require.Equal(t, tt.want, b.Sent())
		})
	}
}

func TestMissingDictionary(t *testing.T) {
	b := quirctest.New(t, quirctest.WithSection("spellcheck", "dictionary = "+filepath.Join(t.TempDir(), "missing")))
	b.Register(Register())

	b.Say("Alice", ".spell hello")
	require.Equal(t, []string{"PRIVMSG #channel :hello is not spelled correctly, and I have no suggestions."}, b.Sent())
}

func TestInvalidSettings(t *testing.T) {
	b := quirctest.New(t, quirctest.WithSection("spellcheck", "max_suggestions = lots"))
	require.Error(t, b.Plugins.Register(Register()))
}
