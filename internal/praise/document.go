package praise

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed praises.yaml
var defaultDocument []byte

var ErrEmptyDocument = errors.New("praise document has no entries")

// Entry is one canned praise. Tokens is zero when the document leaves it out.
type Entry struct {
	Text   string  `yaml:"text"`
	Tokens float64 `yaml:"tokens"`
}

// Document is a list of canned praises used by the offline and dev feeds.
type Document struct {
	Praises []Entry `yaml:"praises"`
}

// ParseDocument decodes YAML and drops blank entries.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse praise document: %w", err)
	}
	kept := doc.Praises[:0]
	for _, e := range doc.Praises {
		e.Text = strings.TrimSpace(e.Text)
		if e.Text == "" {
			continue
		}
		kept = append(kept, e)
	}
	doc.Praises = kept
	if len(doc.Praises) == 0 {
		return nil, ErrEmptyDocument
	}
	return &doc, nil
}

// LoadDocument reads path, or returns the built-in document when path is
// empty.
func LoadDocument(path string) (*Document, error) {
	if path == "" {
		return DefaultDocument(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDocument(data)
}

// DefaultDocument returns the embedded praise list.
func DefaultDocument() *Document {
	doc, err := ParseDocument(defaultDocument)
	if err != nil {
		panic("praise: embedded document: " + err.Error())
	}
	return doc
}

// Pick returns a random entry.
func (d *Document) Pick(rng *rand.Rand) Entry {
	return d.Praises[rng.Intn(len(d.Praises))]
}

// Len returns the number of entries.
func (d *Document) Len() int { return len(d.Praises) }
