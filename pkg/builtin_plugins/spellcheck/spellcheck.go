package spellcheck

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

const (
	defaultDictionary     = "/usr/share/dict/words"
	defaultMaxSuggestions = 5
	maxDistance           = 2
)

// entry is a word of the personal word list.
type entry struct {
	AddedBy string    `json:"added_by"`
	Added   time.Time `json:"added"`
}

type checker struct {
	l              *zap.Logger
	maxSuggestions int

	mtx   sync.RWMutex
	words map[string]struct{}
}

func (c *checker) load(helper plugin_manager.PluginHelper) error {
	c.l = helper.Logger()

	c.maxSuggestions = defaultMaxSuggestions
	if raw := helper.Setting("max_suggestions", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid spellcheck.max_suggestions %q", raw)
		}
		c.maxSuggestions = n
	}

	words := make(map[string]struct{})
	for _, path := range config.ParseList(helper.Setting("dictionary", defaultDictionary)) {
		n, err := readWords(path, words)
		if err != nil {
			c.l.Warn("unable to read dictionary", zap.String("path", path), zap.Error(err))
			continue
		}
		c.l.Info("loaded dictionary", zap.String("path", path), zap.Int("words", n))
	}

	c.mtx.Lock()
	c.words = words
	c.mtx.Unlock()
	return nil
}

// readWords adds the words of a one-word-per-line file to words.
func readWords(path string, words map[string]struct{}) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words[word] = struct{}{}
		n++
	}
	return n, scanner.Err()
}

func (c *checker) inDictionary(word string) bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	_, ok := c.words[word]
	return ok
}

func inWordList(store data_store.PluginStore, word string) (bool, error) {
	found := false
	err := store.Get(word, func(val []byte) error {
		found = val != nil
		return nil
	})
	return found, err
}

type suggestion struct {
	word     string
	distance int
}

// suggest returns the known words closest to word, nearest first.
func (c *checker) suggest(store data_store.PluginStore, word string) ([]string, error) {
	length := utf8.RuneCountInString(word)
	found := []suggestion{}
	consider := func(candidate string) {
		diff := utf8.RuneCountInString(candidate) - length
		if diff > maxDistance || diff < -maxDistance {
			return
		}
		if d := fuzzy.LevenshteinDistance(word, candidate); d <= maxDistance {
			found = append(found, suggestion{word: candidate, distance: d})
		}
	}

	c.mtx.RLock()
	for candidate := range c.words {
		consider(candidate)
	}
	c.mtx.RUnlock()

	err := store.ForEach(func(key string, _ []byte) error {
		if !c.inDictionary(key) {
			consider(key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].distance != found[j].distance {
			return found[i].distance < found[j].distance
		}
		return found[i].word < found[j].word
	})

	out := []string{}
	for _, s := range found {
		if len(out) == c.maxSuggestions {
			break
		}
		out = append(out, s.word)
	}
	return out, nil
}

func (c *checker) spellcheckCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	word := strings.TrimSpace(msg.Trigger.Group(2))
	if word == "" {
		return rules.ErrNoLimit
	}
	if strings.ContainsAny(word, " \t") {
		return msg.Helper.Say("One word at a time, please.")
	}

	lower := strings.ToLower(word)
	store := msg.Helper.Store()

	known := c.inDictionary(lower)
	if !known {
		var err error
		known, err = inWordList(store, lower)
		if err != nil {
			return fmt.Errorf("unable to read the word list: %w", err)
		}
	}
	if known {
		return msg.Helper.Say(word + " is spelled correctly.")
	}

	suggestions, err := c.suggest(store, lower)
	if err != nil {
		return fmt.Errorf("unable to read the word list: %w", err)
	}
	if len(suggestions) == 0 {
		return msg.Helper.Say(word + " is not spelled correctly, and I have no suggestions.")
	}

	quoted := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		quoted = append(quoted, "'"+s+"'")
	}
	return msg.Helper.Say(fmt.Sprintf("%s is not spelled correctly. Maybe you want one of these spellings: %s",
		word, strings.Join(quoted, ", ")))
}

var errNotAdmin = errors.New("only admins can change the word list")

// wordArg returns the single word argument of an admin word list command.
func wordArg(msg *plugin_manager.TriggerMsg) (string, error) {
	if !msg.Trigger.Admin {
		return "", errNotAdmin
	}
	word := strings.TrimSpace(msg.Trigger.Group(2))
	if word == "" || strings.ContainsAny(word, " \t") {
		msg.Helper.Reply("Give me one word.") //nolint:errcheck
		return "", rules.ErrNoLimit
	}
	return strings.ToLower(word), nil
}

func (c *checker) addWordCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	word, err := wordArg(msg)
	if errors.Is(err, errNotAdmin) {
		return rules.ErrNoLimit
	}
	if err != nil {
		return err
	}

	if c.inDictionary(word) {
		return msg.Helper.Reply(word + " is already in my dictionary.")
	}

	added := false
	err = msg.Helper.Store().GetAndUpdate(word, func(val []byte) ([]byte, error) {
		if val != nil {
			return nil, nil
		}
		added = true
		return data_store.Encode(entry{AddedBy: msg.Trigger.Nick, Added: time.Now().UTC()})
	})
	if err != nil {
		return fmt.Errorf("unable to add %s: %w", word, err)
	}

	if !added {
		return msg.Helper.Reply(word + " is already in my word list.")
	}
	c.l.Info("added word", zap.String("word", word), zap.String("nick", msg.Trigger.Nick))
	return msg.Helper.Reply("Added " + word + " to my word list.")
}

func (c *checker) removeWordCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	word, err := wordArg(msg)
	if errors.Is(err, errNotAdmin) {
		return rules.ErrNoLimit
	}
	if err != nil {
		return err
	}

	store := msg.Helper.Store()
	found, err := inWordList(store, word)
	if err != nil {
		return fmt.Errorf("unable to read the word list: %w", err)
	}
	if !found {
		return msg.Helper.Reply(word + " isn't in my word list.")
	}

	if err := store.Delete(word); err != nil {
		return fmt.Errorf("unable to remove %s: %w", word, err)
	}
	return msg.Helper.Reply("Removed " + word + " from my word list.")
}

func Register() plugin_manager.Plugin {
	c := &checker{}

	return plugin_manager.MakePlugin(
		"spellcheck",
		plugin_manager.WithLoad(c.load),
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("spellcheck", c.spellcheckCommand,
				rules.WithAliases("spell"),
				rules.WithDoc("Says whether a word is spelled correctly, and gives suggestions if it's not."),
				rules.WithExamples(rules.Example{Text: ".spellcheck stuff"}),
			),
			plugin_manager.MakeCommand("addword", c.addWordCommand,
				rules.WithDoc("Adds a word to the bot's word list. Admins only."),
				rules.WithExamples(rules.Example{Text: ".addword gopher", IsAdmin: true}),
			),
			plugin_manager.MakeCommand("delword", c.removeWordCommand,
				rules.WithDoc("Removes a word from the bot's word list. Admins only."),
				rules.WithExamples(rules.Example{Text: ".delword gopher", IsAdmin: true}),
			),
		),
	)
}
