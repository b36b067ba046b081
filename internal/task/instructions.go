package task

import (
	"sort"

	"lingotask/internal/command"
)

// AllInstructions enumerates every utterance the task can ever show the
// agent for its catalog, repair feedback included when enabled. The result is
// sorted and deduplicated.
func (t *LanguageTask) AllInstructions() ([]string, error) {
	seen := map[string]struct{}{}
	add := func(req command.Request) error {
		sentences, err := t.gen.Generate(req)
		if err != nil {
			return err
		}
		for _, s := range sentences {
			seen[s] = struct{}{}
		}
		return nil
	}
	if err := t.walkRequests(add); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Corpus summarizes the words and longest utterance of AllInstructions
// without enumerating the repair cross product.
func (t *LanguageTask) Corpus() (*command.Corpus, error) {
	c := command.NewCorpus()
	err := t.walkRequests(func(req command.Request) error {
		words, maxLen, err := t.gen.Span(req)
		if err != nil {
			return err
		}
		c.AddSpan(words, maxLen)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// walkRequests visits every generator request reachable for the catalog.
// Repair feedback names a goal y and an object x that may share a scene.
func (t *LanguageTask) walkRequests(fn func(command.Request) error) error {
	verbs := t.variant.verbs()
	for i := 0; i < t.catalog.Len(); i++ {
		if err := fn(command.Request{Class: command.Instruction, Verbs: verbs, Target: t.pairOf(i)}); err != nil {
			return err
		}
	}
	if !t.cfg.UseRepairs || t.cfg.NumObj < 2 {
		return nil
	}

	negation := t.cfg.NumObj == 2
	goals := map[int]struct{}{}
	wrongs := map[int]struct{}{}
	for _, pair := range t.catalog.ValidPairs() {
		x, y := pair[0], pair[1]
		if err := fn(command.Request{Class: command.Repair, Target: t.pairOf(y), Other: t.pairOf(x)}); err != nil {
			return err
		}
		goals[y] = struct{}{}
		wrongs[x] = struct{}{}
	}
	for _, y := range sortedKeys(goals) {
		if err := fn(command.Request{Class: command.ActionRepair, Verbs: verbs, Target: t.pairOf(y)}); err != nil {
			return err
		}
	}
	if negation {
		for _, x := range sortedKeys(wrongs) {
			if err := fn(command.Request{Class: command.Negation, Target: t.pairOf(x)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
