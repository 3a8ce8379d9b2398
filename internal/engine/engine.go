// Package engine dispatches the tokens of an artifact to the rules
// subscribed to their kinds.
package engine

import (
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

type guardState uint8

const (
	guardUnknown guardState = iota
	guardApplies
	guardRejects
)

// Engine is immutable after New and may be shared between goroutines as
// long as the rules are.
type Engine struct {
	rules         []types.Rule
	subscriptions map[token.Kind][]int
}

// New builds the subscription table. Rules keep their order: for a given
// token, rules are called in the order they were passed.
func New(rules ...types.Rule) *Engine {
	e := &Engine{
		rules:         append([]types.Rule(nil), rules...),
		subscriptions: make(map[token.Kind][]int),
	}
	for i, r := range e.rules {
		seen := make(map[token.Kind]bool)
		for _, kind := range r.Subscriptions() {
			if seen[kind] {
				continue
			}
			seen[kind] = true
			e.subscriptions[kind] = append(e.subscriptions[kind], i)
		}
	}
	return e
}

// Rules returns the rules in dispatch order.
func (e *Engine) Rules() []types.Rule {
	return append([]types.Rule(nil), e.rules...)
}

// Subscribers returns how many rules listen to kind.
func (e *Engine) Subscribers(kind token.Kind) int {
	return len(e.subscriptions[kind])
}

// run holds the per-artifact state of one pass.
type run struct {
	file    *types.File
	sink    *diag.Sink
	guards  []guardState
	skipped []bool
	active  int
}

// Run makes a single pass over the artifact's tokens in increasing index
// order and returns the diagnostics in emission order.
func (e *Engine) Run(file *types.File) []diag.Diagnostic {
	return e.RunInto(file, diag.NewSink(file.Path))
}

// RunInto is Run recording into a caller-supplied sink.
func (e *Engine) RunInto(file *types.File, sink *diag.Sink) []diag.Diagnostic {
	if file.Stream == nil {
		file.Stream = token.NewStream(nil)
	}
	r := &run{
		file:    file,
		sink:    sink,
		guards:  make([]guardState, len(e.rules)),
		skipped: make([]bool, len(e.rules)),
		active:  len(e.rules),
	}
	for idx := 0; idx < file.Stream.Len() && r.active > 0; idx++ {
		tok, _ := file.Stream.At(idx)
		for _, ri := range e.subscriptions[tok.Kind] {
			if r.skipped[ri] {
				continue
			}
			if !r.applies(e.rules[ri], ri) {
				r.skip(ri)
				continue
			}
			if e.dispatch(e.rules[ri], file, idx, sink) == types.SkipArtifact {
				r.skip(ri)
			}
		}
	}
	return sink.All()
}

func (r *run) applies(rule types.Rule, ri int) bool {
	if r.guards[ri] == guardUnknown {
		r.guards[ri] = guardApplies
		if g, ok := rule.(types.Guarded); ok && !g.Applies(r.file) {
			r.guards[ri] = guardRejects
		}
	}
	return r.guards[ri] == guardApplies
}

func (r *run) skip(ri int) {
	if !r.skipped[ri] {
		r.skipped[ri] = true
		r.active--
	}
}

// dispatch calls the rule, turning a panic into "skip this artifact" so a
// faulty rule cannot take the host down.
func (e *Engine) dispatch(rule types.Rule, file *types.File, idx int, sink *diag.Sink) (action types.Action) {
	defer func() {
		if recover() != nil {
			action = types.SkipArtifact
		}
	}()
	return rule.Process(file, idx, sink)
}
