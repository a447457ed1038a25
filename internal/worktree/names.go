package worktree

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// Sanitize turns a branch name into a worktree name safe to use as a
// directory suffix.
func Sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "-")
	return strings.ReplaceAll(name, `\`, "-")
}

// NameGenerator picks human-readable worktree names from the BIP-39 English
// word list.
type NameGenerator struct {
	rng *rand.Rand
}

// NewNameGenerator returns a generator. A non-nil seed makes the sequence
// reproducible.
func NewNameGenerator(seed *uint64) *NameGenerator {
	var src rand.Source
	if seed != nil {
		src = rand.NewPCG(*seed, *seed)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &NameGenerator{rng: rand.New(src)}
}

// Next returns a single word drawn from a freshly generated mnemonic.
func (g *NameGenerator) Next() (string, error) {
	entropy := make([]byte, 16)
	for i := range entropy {
		entropy[i] = byte(g.rng.UintN(256))
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate name: %w", err)
	}
	words := strings.Fields(mnemonic)
	if len(words) == 0 {
		return "", fmt.Errorf("generate name: empty mnemonic")
	}
	return words[g.rng.IntN(len(words))], nil
}
