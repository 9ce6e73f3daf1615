package hc2registry

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// adjectives/nouns back the human-friendly receipt alias ("<adjective>-<noun>").
// No word-list/petname generator appears anywhere in the example pack, so a
// small fixed list plus a crypto/rand-seeded index stands in for it.
var adjectives = []string{
	"brisk", "calm", "dusty", "eager", "faint", "gentle", "hollow", "idle",
	"jolly", "keen", "lively", "mellow", "noble", "odd", "plain", "quiet",
	"rapid", "sturdy", "tidy", "vivid",
}

var nouns = []string{
	"river", "cedar", "falcon", "granite", "harbor", "island", "juniper",
	"kestrel", "lagoon", "meadow", "nimbus", "orchid", "pebble", "quarry",
	"ridge", "summit", "thicket", "umber", "valley", "willow",
}

// newAlias produces a two-word token matching ^[a-z]+-[a-z]+$.
func newAlias() (string, error) {
	a, err := randIndex(len(adjectives))
	if err != nil {
		return "", err
	}
	n, err := randIndex(len(nouns))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", adjectives[a], nouns[n]), nil
}

func randIndex(n int) (int, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("failed to generate random index: %w", err)
	}
	return int(binary.BigEndian.Uint32(buf[:]) % uint32(n)), nil
}
