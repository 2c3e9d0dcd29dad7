package assemble

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/rank"
)

// EmptyMarker is returned when no memory survives retrieval and trimming.
const EmptyMarker = "=== NO MEMORY CONTEXT ==="

var sectionTitles = map[model.Dimension]string{
	model.DimensionCore:       "CORE MEMORY",
	model.DimensionEpisodic:   "EPISODIC MEMORY",
	model.DimensionSemantic:   "SEMANTIC MEMORY",
	model.DimensionProcedural: "PROCEDURAL MEMORY",
	model.DimensionResource:   "RESOURCE MEMORY",
	model.DimensionKnowledge:  "KNOWLEDGE VAULT",
}

// RenderCore renders the persona and human blocks.
func RenderCore(c model.CoreMemory) rank.Item {
	var lines []string
	if c.PersonaValue != "" {
		lines = append(lines, "Persona: "+oneLine(c.PersonaValue))
	}
	if c.HumanValue != "" {
		lines = append(lines, "Human: "+oneLine(c.HumanValue))
	}
	if len(lines) == 0 {
		lines = append(lines, "(empty)")
	}
	return rank.Item{Block: strings.Join(lines, "\n")}
}

// RenderEpisode renders one timeline entry.
func RenderEpisode(e model.EpisodicMemory) rank.Item {
	block := fmt.Sprintf("- [%s] %s %s: %s",
		e.OccurredAt.UTC().Format("2006-01-02 15:04"), e.Actor, e.EventType, oneLine(e.Summary))
	if e.Details != "" {
		block += "\n  " + oneLine(e.Details)
	}
	return rank.Item{Block: block}
}

// RenderConcept renders a semantic memory.
func RenderConcept(s model.SemanticMemory) rank.Item {
	name := s.Name
	if s.Category != "" {
		name += " (" + s.Category + ")"
	}
	if s.Description == "" {
		return rank.Item{Block: "- " + oneLine(name)}
	}
	return rank.Item{Block: "- " + oneLine(name) + ": " + oneLine(s.Description)}
}

// RenderStep renders one procedure step. Steps are grouped under their
// procedure name when serialized.
func RenderStep(p model.ProceduralMemory) rank.Item {
	block := fmt.Sprintf("  %d. %s", p.StepNumber, oneLine(p.Description))
	for _, part := range []struct {
		label string
		items []string
	}{
		{"when", p.Conditions},
		{"do", p.Actions},
		{"expect", p.ExpectedResults},
	} {
		if len(part.items) > 0 {
			block += "\n     " + part.label + ": " + oneLine(strings.Join(part.items, "; "))
		}
	}
	return rank.Item{Block: block, Group: p.ProcedureName, Order: p.StepNumber}
}

// RenderResource renders a resource pointer.
func RenderResource(r model.ResourceMemory) rank.Item {
	block := fmt.Sprintf("- [%s] %s <%s>", r.ResourceType, oneLine(r.Name), r.Location)
	if r.Summary != "" {
		block += ": " + oneLine(r.Summary)
	}
	if len(r.Tags) > 0 {
		block += " (tags: " + strings.Join(r.Tags, ", ") + ")"
	}
	return rank.Item{Block: block}
}

// RenderKnowledge renders a knowledge vault entry.
func RenderKnowledge(k model.KnowledgeEntry) rank.Item {
	block := fmt.Sprintf("- [%s/%s] %s (confidence %.2f", oneLine(k.Domain), oneLine(k.Topic), oneLine(k.Content), k.Confidence)
	if k.Source != "" {
		block += ", source: " + oneLine(k.Source)
	}
	return rank.Item{Block: block + ")"}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// serialize renders the selected items in fixed section order. Procedure
// steps are grouped by procedure, in order of each procedure's best step,
// and listed by step number.
func serialize(sel map[model.Dimension][]rank.Item) string {
	var sections []string
	for _, d := range model.Dimensions {
		items := sel[d]
		if len(items) == 0 {
			continue
		}
		var b strings.Builder
		b.WriteString("=== " + sectionTitles[d] + " ===")
		if d == model.DimensionProcedural {
			writeProcedures(&b, items)
		} else {
			for _, it := range items {
				b.WriteString("\n" + it.Block)
			}
		}
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n\n")
}

func writeProcedures(b *strings.Builder, items []rank.Item) {
	var names []string
	groups := make(map[string][]rank.Item)
	for _, it := range items {
		if _, ok := groups[it.Group]; !ok {
			names = append(names, it.Group)
		}
		groups[it.Group] = append(groups[it.Group], it)
	}
	for _, name := range names {
		steps := groups[name]
		slices.SortStableFunc(steps, func(a, b rank.Item) int { return cmp.Compare(a.Order, b.Order) })
		b.WriteString("\nProcedure: " + oneLine(name))
		for _, it := range steps {
			b.WriteString("\n" + it.Block)
		}
	}
}

// fit serializes sel, dropping the last item of the first non-empty
// dimension in order until the output is within budget runes. It returns
// the output and the surviving selection.
func fit(sel map[model.Dimension][]rank.Item, budget int, order []model.Dimension) (string, map[model.Dimension][]rank.Item) {
	for {
		out := serialize(sel)
		if utf8.RuneCountInString(out) <= budget {
			return out, sel
		}
		if !dropOne(sel, order) {
			return "", sel
		}
	}
}

func dropOne(sel map[model.Dimension][]rank.Item, order []model.Dimension) bool {
	for _, d := range order {
		if n := len(sel[d]); n > 0 {
			sel[d] = sel[d][:n-1]
			if n == 1 {
				delete(sel, d)
			}
			return true
		}
	}
	return false
}

// trimOrder completes order with any dimension it leaves out, lowest
// section priority first.
func trimOrder(order []model.Dimension) []model.Dimension {
	out := make([]model.Dimension, 0, len(model.Dimensions))
	seen := make(map[model.Dimension]bool)
	for _, d := range order {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, d := range slices.Backward(model.Dimensions) {
		if !seen[d] {
			out = append(out, d)
		}
	}
	return out
}
