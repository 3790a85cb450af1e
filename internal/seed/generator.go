// internal/seed/generator.go
package seed

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxUsernameLength bounds generated usernames.
const MaxUsernameLength = 15

// usernameDigits is the width of the numeric suffix on generated usernames.
const usernameDigits = 3

var (
	adjectives = []string{
		"able", "bold", "brave", "calm", "clever", "cozy", "crisp", "eager", "fancy", "gentle",
		"glad", "grand", "happy", "jolly", "keen", "kind", "lively", "lucky", "merry", "mighty",
		"neat", "noble", "proud", "quick", "quiet", "rapid", "shy", "sleepy", "swift", "tidy",
		"vivid", "warm", "wild", "wise", "witty", "zany",
	}
	colors = []string{
		"amber", "aqua", "azure", "beige", "black", "blue", "bronze", "coral", "crimson", "cyan",
		"gold", "gray", "green", "indigo", "ivory", "jade", "lime", "magenta", "maroon", "olive",
		"orange", "pink", "plum", "purple", "red", "rose", "ruby", "salmon", "silver", "tan",
		"teal", "violet", "white", "yellow",
	}
	animals = []string{
		"ant", "badger", "bat", "bear", "beaver", "bison", "cat", "cobra", "crane", "crow",
		"deer", "dingo", "dog", "dove", "eagle", "eel", "falcon", "ferret", "fox", "frog",
		"gecko", "goat", "goose", "hare", "hawk", "heron", "ibis", "koala", "lemur", "lion",
		"llama", "lynx", "mole", "moose", "mouse", "newt", "otter", "owl", "panda", "puma",
		"quail", "raven", "seal", "shark", "sloth", "swan", "tiger", "toad", "viper", "whale",
		"wolf", "yak", "zebra",
	}
)

// Generator produces random but plausible users and items.
// It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator; the same seed yields the same sequence.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *Generator) pick(words []string) string {
	return words[g.rng.IntN(len(words))]
}

// Username returns <adjective><animal><3 digits>, at most MaxUsernameLength characters.
func (g *Generator) Username() string {
	for {
		name := g.pick(adjectives) + g.pick(animals)
		if len(name)+usernameDigits <= MaxUsernameLength {
			return fmt.Sprintf("%s%0*d", name, usernameDigits, g.rng.IntN(1000))
		}
	}
}

// Email derives the address for a generated username.
func Email(username string) string {
	return strings.ToLower(username) + "@example.com"
}

// ItemName returns <adjective>_<color>_<animal>.
func (g *Generator) ItemName() string {
	return g.pick(adjectives) + "_" + g.pick(colors) + "_" + g.pick(animals)
}

// Price returns a whole-unit price drawn uniformly from [lo, hi].
func (g *Generator) Price(lo, hi int64) decimal.Decimal {
	if hi < lo {
		lo, hi = hi, lo
	}
	return decimal.NewFromInt(lo + g.rng.Int64N(hi-lo+1))
}
