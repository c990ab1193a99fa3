package random

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

const (
	maxDice  = 100
	maxSides = 1000
)

var ErrInvalidDice = errors.New("invalid dice")

func rollCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	max := int64(100)
	text := strings.TrimSpace(msg.Trigger.Group(2))
	if text != "" {
		parsedMax, err := strconv.Atoi(text)
		if err != nil || parsedMax < 0 {
			msg.Helper.Reply(fmt.Sprintf("Sorry '%s' isn't a valid number.", text)) //nolint:errcheck
			return rules.ErrNoLimit
		}

		max = int64(parsedMax)
	}

	return msg.Helper.Say(fmt.Sprintf("You rolled a %s!", strconv.FormatInt(rand.Int63n(max+1), 10)))
}

func chooseCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	text := strings.TrimSpace(msg.Trigger.Group(2))
	if text == "" {
		msg.Helper.Reply("I can't make a choice for you if you don't give me any choices!") //nolint:errcheck
		return rules.ErrNoLimit
	}

	sep := ","
	if !strings.Contains(text, ",") && strings.Contains(text, "|") {
		sep = "|"
	}

	choices := []string{}
	for _, choice := range strings.Split(text, sep) {
		if choice = strings.TrimSpace(choice); choice != "" {
			choices = append(choices, choice)
		}
	}

	if len(choices) == 1 {
		return msg.Helper.Say(fmt.Sprintf("Well I guess I *have* to choose %s.", choices[0]))
	}

	return msg.Helper.Say(fmt.Sprintf("I choose %s!", choices[rand.Intn(len(choices))]))
}

var diceRegex = regexp.MustCompile(`^(\d*)d(\d+)(?:([+-])(\d+))?$`)

// Dice is a parsed "NdS+M" expression.
type Dice struct {
	Count    int
	Sides    int
	Modifier int
}

// ParseDice reads expressions like "d20", "3d6" or "2d8-1".
func ParseDice(expr string) (Dice, error) {
	m := diceRegex.FindStringSubmatch(strings.ToLower(strings.ReplaceAll(expr, " ", "")))
	if m == nil {
		return Dice{}, fmt.Errorf("%w: %s", ErrInvalidDice, expr)
	}

	d := Dice{Count: 1}
	if m[1] != "" {
		d.Count, _ = strconv.Atoi(m[1])
	}
	d.Sides, _ = strconv.Atoi(m[2])
	if m[4] != "" {
		d.Modifier, _ = strconv.Atoi(m[4])
		if m[3] == "-" {
			d.Modifier = -d.Modifier
		}
	}

	if d.Count < 1 || d.Count > maxDice || d.Sides < 1 || d.Sides > maxSides {
		return Dice{}, fmt.Errorf("%w: %s", ErrInvalidDice, expr)
	}
	return d, nil
}

// Roll throws the dice with r and returns every result and the total.
func (d Dice) Roll(r *rand.Rand) ([]int, int) {
	results := make([]int, d.Count)
	total := d.Modifier
	for i := range results {
		results[i] = r.Intn(d.Sides) + 1
		total += results[i]
	}
	return results, total
}

func diceCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	expr := msg.Trigger.Group(2)
	d, err := ParseDice(expr)
	if err != nil {
		msg.Helper.Reply("I only understand dice like 2d6+1.") //nolint:errcheck
		return rules.ErrNoLimit
	}

	results, total := d.Roll(rand.New(rand.NewSource(rand.Int63())))
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = strconv.Itoa(r)
	}

	return msg.Helper.Say(fmt.Sprintf("%s: (%s) = %d", strings.ReplaceAll(expr, " ", ""), strings.Join(parts, " + "), total))
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"random",
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("roll", rollCommand,
				rules.WithDoc("Rolls a number between 0 and the given maximum, 100 by default."),
				rules.WithExamples(rules.Example{Text: ".roll 20"}),
			),
			plugin_manager.MakeCommand("choose", chooseCommand,
				rules.WithAliases("choice"),
				rules.WithDoc("Picks one of the comma separated choices."),
				rules.WithExamples(rules.Example{Text: ".choose tea, coffee"}),
			),
			plugin_manager.MakeCommand("dice", diceCommand,
				rules.WithAliases("d"),
				rules.WithDoc("Rolls dice written as NdS+M."),
				rules.WithExamples(rules.Example{Text: ".dice 2d6+1"}),
			),
		),
	)
}
