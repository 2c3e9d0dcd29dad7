package model

import (
	"maps"
	"time"
)

// Patches carry partial updates: nil fields are left untouched. Metadata is
// merged key by key; a nil value deletes the key.

// CorePatch updates a core memory block.
type CorePatch struct {
	PersonaValue *string        `json:"persona_value,omitempty"`
	PersonaLimit *int           `json:"persona_limit,omitempty"`
	HumanValue   *string        `json:"human_value,omitempty"`
	HumanLimit   *int           `json:"human_limit,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Apply merges the patch into c.
func (p CorePatch) Apply(c *CoreMemory) {
	set(&c.PersonaValue, p.PersonaValue)
	set(&c.PersonaLimit, p.PersonaLimit)
	set(&c.HumanValue, p.HumanValue)
	set(&c.HumanLimit, p.HumanLimit)
	c.Metadata = mergeMetadata(c.Metadata, p.Metadata)
}

// EpisodicPatch updates an episodic memory.
type EpisodicPatch struct {
	EventType  *string        `json:"event_type,omitempty"`
	Summary    *string        `json:"summary,omitempty"`
	Details    *string        `json:"details,omitempty"`
	Actor      *Actor         `json:"actor,omitempty"`
	TreePath   *[]string      `json:"tree_path,omitempty"`
	OccurredAt *time.Time     `json:"occurred_at,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Apply merges the patch into e.
func (p EpisodicPatch) Apply(e *EpisodicMemory) {
	set(&e.EventType, p.EventType)
	set(&e.Summary, p.Summary)
	set(&e.Details, p.Details)
	set(&e.Actor, p.Actor)
	set(&e.TreePath, p.TreePath)
	set(&e.OccurredAt, p.OccurredAt)
	e.Metadata = mergeMetadata(e.Metadata, p.Metadata)
}

// TextChanged reports whether an embedded text field is touched.
func (p EpisodicPatch) TextChanged() bool { return p.Summary != nil || p.Details != nil }

// SemanticPatch updates a semantic memory.
type SemanticPatch struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Apply merges the patch into s.
func (p SemanticPatch) Apply(s *SemanticMemory) {
	set(&s.Name, p.Name)
	set(&s.Description, p.Description)
	set(&s.Category, p.Category)
	s.Metadata = mergeMetadata(s.Metadata, p.Metadata)
}

// TextChanged reports whether an embedded text field is touched.
func (p SemanticPatch) TextChanged() bool { return p.Name != nil || p.Description != nil }

// RelationshipPatch updates an edge. The endpoints are identity fields and
// cannot be patched.
type RelationshipPatch struct {
	RelationshipType *string        `json:"relationship_type,omitempty"`
	Strength         *float64       `json:"strength,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Apply merges the patch into r.
func (p RelationshipPatch) Apply(r *SemanticRelationship) {
	set(&r.RelationshipType, p.RelationshipType)
	set(&r.Strength, p.Strength)
	r.Metadata = mergeMetadata(r.Metadata, p.Metadata)
}

// ProceduralPatch updates one procedural step.
type ProceduralPatch struct {
	ProcedureName   *string        `json:"procedure_name,omitempty"`
	StepNumber      *int           `json:"step_number,omitempty"`
	Description     *string        `json:"description,omitempty"`
	Conditions      *[]string      `json:"conditions,omitempty"`
	Actions         *[]string      `json:"actions,omitempty"`
	ExpectedResults *[]string      `json:"expected_results,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Apply merges the patch into p.
func (pp ProceduralPatch) Apply(p *ProceduralMemory) {
	set(&p.ProcedureName, pp.ProcedureName)
	set(&p.StepNumber, pp.StepNumber)
	set(&p.Description, pp.Description)
	set(&p.Conditions, pp.Conditions)
	set(&p.Actions, pp.Actions)
	set(&p.ExpectedResults, pp.ExpectedResults)
	p.Metadata = mergeMetadata(p.Metadata, pp.Metadata)
}

// ResourcePatch updates a resource pointer.
type ResourcePatch struct {
	ResourceType *ResourceType  `json:"resource_type,omitempty"`
	Name         *string        `json:"name,omitempty"`
	Location     *string        `json:"location,omitempty"`
	Summary      *string        `json:"summary,omitempty"`
	Tags         *[]string      `json:"tags,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Apply merges the patch into r.
func (p ResourcePatch) Apply(r *ResourceMemory) {
	set(&r.ResourceType, p.ResourceType)
	set(&r.Name, p.Name)
	set(&r.Location, p.Location)
	set(&r.Summary, p.Summary)
	set(&r.Tags, p.Tags)
	r.Metadata = mergeMetadata(r.Metadata, p.Metadata)
}

// KnowledgePatch updates a knowledge vault entry.
type KnowledgePatch struct {
	Domain      *string        `json:"domain,omitempty"`
	Topic       *string        `json:"topic,omitempty"`
	Content     *string        `json:"content,omitempty"`
	Source      *string        `json:"source,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty"`
	ValidatedAt *time.Time     `json:"validated_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Apply merges the patch into k.
func (p KnowledgePatch) Apply(k *KnowledgeEntry) {
	set(&k.Domain, p.Domain)
	set(&k.Topic, p.Topic)
	set(&k.Content, p.Content)
	set(&k.Source, p.Source)
	set(&k.Confidence, p.Confidence)
	if p.ValidatedAt != nil {
		t := *p.ValidatedAt
		k.ValidatedAt = &t
	}
	k.Metadata = mergeMetadata(k.Metadata, p.Metadata)
}

// TextChanged reports whether an embedded text field is touched.
func (p KnowledgePatch) TextChanged() bool { return p.Topic != nil || p.Content != nil }

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func mergeMetadata(dst, patch map[string]any) map[string]any {
	if len(patch) == 0 {
		return dst
	}
	out := maps.Clone(dst)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
