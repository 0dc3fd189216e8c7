// Package crisis decides whether an incoming message carries a crisis
// signal: a distress emoji, or a phrase from the crisis catalog matched with
// edit-distance tolerance after normalization.
//
// The detector is a deterministic, auditable rule-matching layer. It is a
// heuristic, not a clinical safety system: it will miss some at-risk
// messages and flag some benign ones, and its catalog must be reviewed by a
// domain expert before deployment.
package crisis

import (
	"strings"

	"github.com/tailored-agentic-units/lifeline/fuzzy"
	"github.com/tailored-agentic-units/lifeline/textnorm"
)

// Reason identifies which rule produced a critical verdict.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonEmoji    Reason = "emoji"
	ReasonCategory Reason = "category"
	ReasonCore     Reason = "core"
)

// Verdict is the outcome of Detect. Category and Phrase are set for
// category and core matches; Phrase holds the emoji for emoji matches.
type Verdict struct {
	Critical bool
	Reason   Reason
	Category string
	Phrase   string
}

type phrase struct {
	raw        string
	normalized string
}

type category struct {
	name    string
	phrases []phrase
}

// Option configures a Detector.
type Option func(*Detector)

// WithCategoryTolerance sets the base edit tolerance for category phrases.
func WithCategoryTolerance(n int) Option {
	return func(d *Detector) { d.categoryTolerance = n }
}

// WithCoreTolerance sets the base edit tolerance for core signals.
func WithCoreTolerance(n int) Option {
	return func(d *Detector) { d.coreTolerance = n }
}

// Detector evaluates messages against a catalog. Catalog phrases are
// normalized once at construction. A Detector is immutable and safe for
// concurrent use.
type Detector struct {
	categories        []category
	core              []phrase
	emoji             []string
	categoryTolerance int
	coreTolerance     int
}

// NewDetector compiles catalog into a Detector.
func NewDetector(catalog *Catalog, opts ...Option) *Detector {
	d := &Detector{
		categories:        make([]category, 0, len(catalog.Categories)),
		core:              compile(catalog.CoreSignals),
		emoji:             textnorm.Emoji,
		categoryTolerance: defaultCategoryTolerance,
		coreTolerance:     defaultCoreTolerance,
	}

	for _, c := range catalog.Categories {
		d.categories = append(d.categories, category{
			name:    c.Name,
			phrases: compile(c.Phrases),
		})
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// DetectCritical reports whether raw carries a crisis signal.
func (d *Detector) DetectCritical(raw string) bool {
	return d.Detect(raw).Critical
}

// Detect evaluates raw and reports the first matching rule. Rules run in a
// fixed order: emoji on the raw text, then every catalog category, then the
// core signals with the looser tolerance.
func (d *Detector) Detect(raw string) Verdict {
	if strings.TrimSpace(raw) == "" {
		return Verdict{}
	}

	for _, e := range d.emoji {
		if strings.Contains(raw, e) {
			return Verdict{Critical: true, Reason: ReasonEmoji, Phrase: e}
		}
	}

	text := textnorm.Normalize(raw)

	for _, c := range d.categories {
		for _, p := range c.phrases {
			if fuzzy.Contains(text, p.normalized, d.categoryTolerance) {
				return Verdict{Critical: true, Reason: ReasonCategory, Category: c.name, Phrase: p.raw}
			}
		}
	}

	for _, p := range d.core {
		if fuzzy.Contains(text, p.normalized, d.coreTolerance) {
			return Verdict{Critical: true, Reason: ReasonCore, Phrase: p.raw}
		}
	}

	return Verdict{}
}

// Tolerances returns the configured base tolerances for categories and
// core signals.
func (d *Detector) Tolerances() (category, core int) {
	return d.categoryTolerance, d.coreTolerance
}

func compile(phrases []string) []phrase {
	out := make([]phrase, 0, len(phrases))
	for _, p := range phrases {
		n := textnorm.Normalize(p)
		if n == "" {
			continue
		}
		out = append(out, phrase{raw: p, normalized: n})
	}
	return out
}
