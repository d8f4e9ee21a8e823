// Package topichash derives stable content-addressed IDs for topics.
package topichash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/retention/internal/domain"
)

// Normalize returns the canonical text of a topic: each field lowercased,
// trimmed, with CRLF line endings folded and runs of spaces or tabs
// collapsed, then joined with newlines.
func Normalize(topic domain.Topic) string {
	fields := []string{topic.Question, topic.Answer, topic.Context}
	for i, f := range fields {
		fields[i] = normalizeField(f)
	}
	// Newline separation keeps "ab"+"c" distinct from "a"+"bc".
	return strings.Join(fields, "\n")
}

func normalizeField(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(strings.ToLower(strings.TrimSpace(s)), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t'
		}), " ")
	}
	return strings.Join(lines, "\n")
}

// Hash returns the hex SHA-256 of the normalized topic.
func Hash(topic domain.Topic) string {
	sum := sha256.Sum256([]byte(Normalize(topic)))
	return hex.EncodeToString(sum[:])
}
