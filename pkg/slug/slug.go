// Package slug converts numeric paste identifiers to URL-friendly
// animal-name slugs and back. The codec is pure and stateless.
package slug

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidSlug is returned when a slug contains an unknown word.
var ErrInvalidSlug = errors.New("invalid slug")

// The alphabet. Its size is the base of the encoding, so changing it breaks
// every already published URL and on-disk attachment directory.
var animals = []string{
	"ant", "bat", "bee", "boa", "cat", "cod", "cow", "dog",
	"eel", "elk", "emu", "fly", "fox", "gnu", "hen", "jay",
	"kit", "koi", "owl", "pig", "pug", "ram", "rat", "ray",
	"seal", "swan", "toad", "wolf", "lynx", "mole", "moth", "newt",
	"crab", "crow", "dove", "duck", "hare", "hawk", "ibis", "kiwi",
	"lark", "lion", "loon", "mule", "oryx", "pike", "pony", "puma",
	"slug", "sole", "tuna", "vole", "wasp", "wren", "yak", "zebu",
	"bison", "camel", "dingo", "gecko", "heron", "koala", "lemur", "otter",
}

var index = func() map[string]uint64 {
	m := make(map[string]uint64, len(animals))
	for i, name := range animals {
		m[name] = uint64(i)
	}
	return m
}()

// Encode renders the given id as a dash-separated animal-name slug.
func Encode(id uint64) string {
	base := uint64(len(animals))

	if id == 0 {
		return animals[0]
	}

	var words []string
	for id > 0 {
		words = append(words, animals[id%base])
		id /= base
	}

	// digits are produced least-significant first
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return strings.Join(words, "-")
}

// Decode parses a slug produced by Encode back into its numeric id.
func Decode(s string) (uint64, error) {
	base := uint64(len(animals))

	if s == "" {
		return 0, ErrInvalidSlug
	}

	var id uint64
	for _, word := range strings.Split(s, "-") {
		digit, ok := index[word]
		if !ok {
			return 0, errors.Wrapf(ErrInvalidSlug, "unknown word %q", word)
		}
		id = id*base + digit
	}
	return id, nil
}
