package main

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
	"github.com/xiaot623/gogo/runwatch/internal/state"
)

// transitionPrinter writes one line per agent whenever its status or latest
// message changes.
type transitionPrinter struct {
	w io.Writer

	mu         sync.Mutex
	generation uint64
	seen       map[string]string
}

func newTransitionPrinter(w io.Writer) *transitionPrinter {
	return &transitionPrinter{w: w, seen: make(map[string]string)}
}

// Observe has the state.Observer signature.
func (p *transitionPrinter) Observe(snap state.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Generation != p.generation {
		p.generation = snap.Generation
		p.seen = make(map[string]string)
	}

	ids := make([]string, 0, len(snap.Agents))
	for id := range snap.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		line := formatAgent(snap.Agents[id])
		if p.seen[id] == line {
			continue
		}
		p.seen[id] = line
		fmt.Fprintln(p.w, line)
	}
}

func formatAgent(rec domain.AgentRecord) string {
	line := fmt.Sprintf("%-24s %-11s", rec.ID, rec.Status)
	if rec.Ticker != nil {
		line += " [" + *rec.Ticker + "]"
	}
	if n := len(rec.History); n > 0 && rec.History[n-1].Message != "" {
		line += " " + rec.History[n-1].Message
	}
	return line
}

// outputPrinter writes the run output once per generation.
type outputPrinter struct {
	w io.Writer

	printed    bool
	generation uint64
}

func (p *outputPrinter) Observe(snap state.Snapshot) error {
	if snap.Output == nil || (p.printed && p.generation == snap.Generation) {
		return nil
	}
	p.printed = true
	p.generation = snap.Generation
	return printOutput(p.w, snap.Output)
}
