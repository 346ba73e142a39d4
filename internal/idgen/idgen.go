// Package idgen generates short, URL-safe identifiers for tasks, sections and
// the provisional records the gateway inserts before the remote store answers.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each kind of identifier.
const (
	TempPrefix    = "tmp-"
	TaskPrefix    = "tsk-"
	SectionPrefix = "sec-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Task returns a new persistent task id.
func Task() (string, error) { return GenerateWithPrefix(TaskPrefix) }

// Section returns a new persistent section id.
func Section() (string, error) { return GenerateWithPrefix(SectionPrefix) }

// Temp returns a provisional id. Temp ids never collide with persistent ones
// because of their prefix.
func Temp() string {
	id, err := GenerateWithPrefix(TempPrefix)
	if err != nil {
		// nanoid only fails when the system entropy source does.
		panic(err)
	}
	return id
}

// IsTemp reports whether id was produced by Temp.
func IsTemp(id string) bool { return strings.HasPrefix(id, TempPrefix) }

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
