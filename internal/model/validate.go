package model

import (
	"strings"
	"unicode/utf8"
)

// Validate checks the field invariants of a core memory block.
func (c CoreMemory) Validate() error {
	if c.PersonaLimit <= 0 {
		return Invalid(DimensionCore, "persona_limit", "must be positive")
	}
	if c.HumanLimit <= 0 {
		return Invalid(DimensionCore, "human_limit", "must be positive")
	}
	if n := utf8.RuneCountInString(c.PersonaValue); n > c.PersonaLimit {
		return Invalid(DimensionCore, "persona_value", "%d characters exceeds limit %d", n, c.PersonaLimit)
	}
	if n := utf8.RuneCountInString(c.HumanValue); n > c.HumanLimit {
		return Invalid(DimensionCore, "human_value", "%d characters exceeds limit %d", n, c.HumanLimit)
	}
	return nil
}

// Validate checks required episodic fields.
func (e EpisodicMemory) Validate() error {
	if blank(e.EventType) {
		return Invalid(DimensionEpisodic, "event_type", "is required")
	}
	if blank(e.Summary) {
		return Invalid(DimensionEpisodic, "summary", "is required")
	}
	if !ValidActors[e.Actor] {
		return Invalid(DimensionEpisodic, "actor", "%q is not one of user, assistant, system", e.Actor)
	}
	for i, seg := range e.TreePath {
		if blank(seg) {
			return Invalid(DimensionEpisodic, "tree_path", "segment %d is empty", i)
		}
	}
	return nil
}

// Validate checks required semantic fields.
func (s SemanticMemory) Validate() error {
	if blank(s.Name) {
		return Invalid(DimensionSemantic, "name", "is required")
	}
	return nil
}

// Validate checks the edge invariants that do not need the store.
func (r SemanticRelationship) Validate() error {
	if blank(r.SourceID) {
		return Invalid(DimensionRelationship, "source_id", "is required")
	}
	if blank(r.TargetID) {
		return Invalid(DimensionRelationship, "target_id", "is required")
	}
	if r.SourceID == r.TargetID {
		return Invalid(DimensionRelationship, "target_id", "self-loop on %s", r.SourceID)
	}
	if blank(r.RelationshipType) {
		return Invalid(DimensionRelationship, "relationship_type", "is required")
	}
	if r.Strength < 0 || r.Strength > 1 || r.Strength != r.Strength {
		return Invalid(DimensionRelationship, "strength", "%v is outside [0, 1]", r.Strength)
	}
	return nil
}

// Validate checks a single procedural step. Sequence contiguity is checked
// by the procedural manager against the stored steps.
func (p ProceduralMemory) Validate() error {
	if blank(p.ProcedureName) {
		return Invalid(DimensionProcedural, "procedure_name", "is required")
	}
	if p.StepNumber < 1 {
		return Invalid(DimensionProcedural, "step_number", "must start at 1, got %d", p.StepNumber)
	}
	if blank(p.Description) {
		return Invalid(DimensionProcedural, "description", "is required")
	}
	return nil
}

// Validate checks required resource fields.
func (r ResourceMemory) Validate() error {
	if !ValidResourceTypes[r.ResourceType] {
		return Invalid(DimensionResource, "resource_type", "%q is not one of file, url, image, document", r.ResourceType)
	}
	if blank(r.Name) {
		return Invalid(DimensionResource, "name", "is required")
	}
	if blank(r.Location) {
		return Invalid(DimensionResource, "location", "is required")
	}
	return nil
}

// Validate checks required knowledge fields and the confidence range.
func (k KnowledgeEntry) Validate() error {
	if blank(k.Domain) {
		return Invalid(DimensionKnowledge, "domain", "is required")
	}
	if blank(k.Topic) {
		return Invalid(DimensionKnowledge, "topic", "is required")
	}
	if blank(k.Content) {
		return Invalid(DimensionKnowledge, "content", "is required")
	}
	if k.Confidence < 0 || k.Confidence > 1 || k.Confidence != k.Confidence {
		return Invalid(DimensionKnowledge, "confidence", "%v is outside [0, 1]", k.Confidence)
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
