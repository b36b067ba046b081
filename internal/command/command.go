package command

import (
	"errors"
	"fmt"
	"strings"

	"lingotask/internal/property"
)

var (
	ErrUnknownClass = errors.New("unknown utterance class")
	ErrDummyTarget  = errors.New("utterance target has no primary property")
	ErrNoVerbs      = errors.New("utterance class requires at least one verb")
)

// Class is an utterance family.
type Class int

const (
	Instruction Class = iota
	Negation
	Repair
	ActionRepair
)

// Classes lists every utterance class in rendering order.
var Classes = []Class{Instruction, Negation, Repair, ActionRepair}

func (c Class) String() string {
	switch c {
	case Instruction:
		return "instruction"
	case Negation:
		return "negation"
	case Repair:
		return "repair"
	case ActionRepair:
		return "action_repair"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ParseClass resolves a class name.
func ParseClass(name string) (Class, error) {
	switch strings.ReplaceAll(strings.TrimSpace(strings.ToLower(name)), "-", "_") {
	case "instruction", "primary":
		return Instruction, nil
	case "negation":
		return Negation, nil
	case "repair":
		return Repair, nil
	case "action_repair":
		return ActionRepair, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownClass, name)
	}
}

// UsesVerbs reports whether the class emits one utterance per verb.
func (c Class) UsesVerbs() bool {
	return c == Instruction || c == ActionRepair
}

// Pair is the (primary, secondary) rendering of an object. The secondary may
// be the dummy, in which case it is never rendered.
type Pair [2]property.Property

// Explicit returns the properties that appear in text.
func (p Pair) Explicit() []property.Property {
	if p[1].IsDummy() {
		return []property.Property{p[0]}
	}
	return []property.Property{p[0], p[1]}
}

func (p Pair) String() string {
	return strings.Join(propertyNames(p.Explicit()), " ")
}

func propertyNames(props []property.Property) []string {
	out := make([]string, len(props))
	for i, prop := range props {
		out[i] = prop.Name()
	}
	return out
}

// Request describes one Generate call. Other is the wrongly handled object
// and is only read by the Repair class.
type Request struct {
	Class  Class
	Verbs  []string
	Target Pair
	Other  Pair
}

// Generator renders utterances. The zero value emits canonical words only.
type Generator struct {
	UseBase     bool
	UseSynonyms bool
}

// NewGenerator returns a generator with the given word flags.
func NewGenerator(useBase, useSynonyms bool) Generator {
	return Generator{UseBase: useBase, UseSynonyms: useSynonyms}
}

func (g Generator) flags() (bool, bool) {
	if !g.UseBase && !g.UseSynonyms {
		return true, false
	}
	return g.UseBase, g.UseSynonyms
}

// Phrases returns every rendering of the pair: the cartesian product of the
// word lists of its explicit properties, canonical words first.
func (g Generator) Phrases(p Pair) []string {
	useBase, useSynonyms := g.flags()
	phrases := []string{""}
	for _, prop := range p.Explicit() {
		words := prop.Words(useBase, useSynonyms)
		next := make([]string, 0, len(phrases)*len(words))
		for _, prefix := range phrases {
			for _, w := range words {
				if prefix == "" {
					next = append(next, w)
				} else {
					next = append(next, prefix+" "+w)
				}
			}
		}
		phrases = next
	}
	return phrases
}

// Generate renders every utterance of the requested class.
func (g Generator) Generate(req Request) ([]string, error) {
	if err := checkPair(req.Target); err != nil {
		return nil, err
	}
	switch req.Class {
	case Instruction:
		if len(req.Verbs) == 0 {
			return nil, fmt.Errorf("%s: %w", req.Class, ErrNoVerbs)
		}
		return g.withVerbs(req.Verbs, req.Target, "%s the %s"), nil
	case ActionRepair:
		if len(req.Verbs) == 0 {
			return nil, fmt.Errorf("%s: %w", req.Class, ErrNoVerbs)
		}
		return g.withVerbs(req.Verbs, req.Target, "no %s the %s"), nil
	case Negation:
		phrases := g.Phrases(req.Target)
		out := make([]string, 0, len(phrases))
		for _, ph := range phrases {
			out = append(out, "not the "+ph)
		}
		return out, nil
	case Repair:
		if err := checkPair(req.Other); err != nil {
			return nil, fmt.Errorf("repair other: %w", err)
		}
		wrong := g.Phrases(req.Other)
		goal := g.Phrases(req.Target)
		out := make([]string, 0, len(wrong)*len(goal))
		for _, x := range wrong {
			for _, y := range goal {
				out = append(out, "no not the "+x+" the "+y)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownClass, int(req.Class))
	}
}

// Instructions is Generate for the Instruction class.
func (g Generator) Instructions(verbs []string, target Pair) ([]string, error) {
	return g.Generate(Request{Class: Instruction, Verbs: verbs, Target: target})
}

func (g Generator) withVerbs(verbs []string, target Pair, format string) []string {
	phrases := g.Phrases(target)
	out := make([]string, 0, len(verbs)*len(phrases))
	for _, v := range verbs {
		for _, ph := range phrases {
			out = append(out, fmt.Sprintf(format, v, ph))
		}
	}
	return out
}

func checkPair(p Pair) error {
	if p[0].IsDummy() || !p[0].Valid() {
		return ErrDummyTarget
	}
	if !p[1].IsDummy() && !p[1].Valid() {
		return fmt.Errorf("secondary %+v is not a property value", p[1])
	}
	return nil
}

// Span returns the words a class can emit and its longest utterance in words
// without enumerating the utterances.
func (g Generator) Span(req Request) ([]string, int, error) {
	if err := checkPair(req.Target); err != nil {
		return nil, 0, err
	}
	useBase, useSynonyms := g.flags()
	phraseWords := func(p Pair) []string {
		var out []string
		for _, prop := range p.Explicit() {
			out = append(out, prop.Words(useBase, useSynonyms)...)
		}
		return out
	}
	target := phraseWords(req.Target)
	targetLen := len(req.Target.Explicit())

	switch req.Class {
	case Instruction:
		if len(req.Verbs) == 0 {
			return nil, 0, fmt.Errorf("%s: %w", req.Class, ErrNoVerbs)
		}
		words := append(append([]string{"the"}, req.Verbs...), target...)
		return words, 2 + targetLen, nil
	case ActionRepair:
		if len(req.Verbs) == 0 {
			return nil, 0, fmt.Errorf("%s: %w", req.Class, ErrNoVerbs)
		}
		words := append(append([]string{"no", "the"}, req.Verbs...), target...)
		return words, 3 + targetLen, nil
	case Negation:
		return append([]string{"not", "the"}, target...), 2 + targetLen, nil
	case Repair:
		if err := checkPair(req.Other); err != nil {
			return nil, 0, fmt.Errorf("repair other: %w", err)
		}
		words := append([]string{"no", "not", "the"}, phraseWords(req.Other)...)
		words = append(words, target...)
		return words, 4 + len(req.Other.Explicit()) + targetLen, nil
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownClass, int(req.Class))
	}
}
