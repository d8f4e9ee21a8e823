// Package parser extracts topics from markdown files written as
// "Q:", "A:" and "C:" blocks. A line of "---" or a new "Q:" ends a topic.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/retention/internal/domain"
)

const separator = "---"

type field int

const (
	none field = iota
	question
	answer
	context
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", question},
	{"A:", answer},
	{"C:", context},
}

// builder accumulates the lines of the field currently being read.
type builder struct {
	topics  []domain.Topic
	current domain.Topic
	field   field
	lines   []string
}

// flush stores the buffered lines into the current field.
func (b *builder) flush() {
	if b.field == none {
		return
	}
	for len(b.lines) > 0 && strings.TrimSpace(b.lines[len(b.lines)-1]) == "" {
		b.lines = b.lines[:len(b.lines)-1]
	}
	content := strings.Join(b.lines, "\n")
	switch b.field {
	case question:
		b.current.Question = content
	case answer:
		b.current.Answer = content
	case context:
		b.current.Context = content
	}
	b.lines = nil
	b.field = none
}

// finish closes the current topic. Topics without a question are dropped.
func (b *builder) finish() {
	b.flush()
	if b.current.Question != "" {
		b.topics = append(b.topics, b.current)
	}
	b.current = domain.Topic{}
}

func (b *builder) start(f field, rest string) {
	if f == question && (b.field != none || b.current.Question != "") {
		b.finish()
	}
	b.flush()
	b.field = f
	b.lines = append(b.lines, strings.TrimPrefix(rest, " "))
}

func (b *builder) line(line string) {
	if line == separator {
		b.finish()
		return
	}
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			b.start(p.field, rest)
			return
		}
	}
	if b.field != none {
		b.lines = append(b.lines, line)
	}
}

// ParseFile reads a file from the given path and extracts all topics.
func ParseFile(path string) ([]domain.Topic, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all topics.
func Parse(r io.Reader) ([]domain.Topic, error) {
	scanner := bufio.NewScanner(r)
	var b builder
	for scanner.Scan() {
		b.line(strings.TrimSuffix(scanner.Text(), "\r"))
	}
	b.finish()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.topics, nil
}
