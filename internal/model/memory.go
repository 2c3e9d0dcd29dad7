// Package model defines the six memory dimensions and their record types.
package model

import (
	"strings"
	"time"
)

// Dimension identifies one of the six memory partitions.
type Dimension string

const (
	DimensionCore       Dimension = "core"
	DimensionEpisodic   Dimension = "episodic"
	DimensionSemantic   Dimension = "semantic"
	DimensionProcedural Dimension = "procedural"
	DimensionResource   Dimension = "resource"
	DimensionKnowledge  Dimension = "knowledge_vault"

	// DimensionRelationship is not a retrieval dimension; it only names the
	// semantic relationship table for ids and errors.
	DimensionRelationship Dimension = "semantic_relationship"
)

// Dimensions lists the retrieval dimensions in context section order.
var Dimensions = []Dimension{
	DimensionCore,
	DimensionEpisodic,
	DimensionSemantic,
	DimensionProcedural,
	DimensionResource,
	DimensionKnowledge,
}

var idPrefixes = map[Dimension]string{
	DimensionCore:         "core",
	DimensionEpisodic:     "epi",
	DimensionSemantic:     "sem",
	DimensionRelationship: "rel",
	DimensionProcedural:   "proc",
	DimensionResource:     "res",
	DimensionKnowledge:    "kv",
}

// Prefix returns the id prefix for records of this dimension.
func (d Dimension) Prefix() string { return idPrefixes[d] }

// Valid reports whether d names a known dimension or the relationship table.
func (d Dimension) Valid() bool {
	_, ok := idPrefixes[d]
	return ok
}

// ParseDimension accepts the canonical name, the id prefix, or a few common
// aliases ("knowledge", "resources", "procedure").
func ParseDimension(s string) (Dimension, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "knowledge", "vault":
		return DimensionKnowledge, true
	case "resources":
		return DimensionResource, true
	case "procedure", "procedures":
		return DimensionProcedural, true
	case "episode", "episodes":
		return DimensionEpisodic, true
	case "relationship", "relationships":
		return DimensionRelationship, true
	}
	for d, p := range idPrefixes {
		if s == string(d) || s == p {
			return d, true
		}
	}
	return "", false
}

// DimensionOf recovers the dimension from a "{prefix}_{uuid}" id.
func DimensionOf(id string) (Dimension, bool) {
	prefix, _, ok := strings.Cut(id, "_")
	if !ok {
		return "", false
	}
	for d, p := range idPrefixes {
		if p == prefix {
			return d, true
		}
	}
	return "", false
}

// Base holds the fields every record shares.
type Base struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Header returns the shared fields. Promoted to every record type.
func (b Base) Header() Base { return b }

// KeepIdentity copies the immutable fields (id, owner, creation time) from
// prev onto b.
func (b *Base) KeepIdentity(prev Base) {
	b.ID = prev.ID
	b.UserID = prev.UserID
	b.CreatedAt = prev.CreatedAt
}

// Record is implemented by all record types through the embedded Base.
type Record interface {
	Header() Base
}

// CoreMemory holds the stable persona and human blocks for one user.
type CoreMemory struct {
	Base
	PersonaValue string `json:"persona_value"`
	PersonaLimit int    `json:"persona_limit"`
	HumanValue   string `json:"human_value"`
	HumanLimit   int    `json:"human_limit"`
}

// Actor is who produced an episodic event.
type Actor string

const (
	ActorUser      Actor = "user"
	ActorAssistant Actor = "assistant"
	ActorSystem    Actor = "system"
)

// ValidActors are the allowed episodic actors.
var ValidActors = map[Actor]bool{
	ActorUser:      true,
	ActorAssistant: true,
	ActorSystem:    true,
}

// EpisodicMemory is a discrete past event or conversation turn.
type EpisodicMemory struct {
	Base
	EventType        string    `json:"event_type"`
	Summary          string    `json:"summary"`
	Details          string    `json:"details,omitempty"`
	Actor            Actor     `json:"actor"`
	TreePath         []string  `json:"tree_path,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
	SummaryEmbedding []float32 `json:"summary_embedding,omitempty"`
	DetailsEmbedding []float32 `json:"details_embedding,omitempty"`
	// Seq is a lexically sortable insertion key; later inserts sort higher.
	Seq string `json:"seq"`
}

// SemanticMemory is a durable concept or fact.
type SemanticMemory struct {
	Base
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// SemanticRelationship is a weighted edge between two semantic memories.
type SemanticRelationship struct {
	Base
	SourceID         string  `json:"source_id"`
	TargetID         string  `json:"target_id"`
	RelationshipType string  `json:"relationship_type"`
	Strength         float64 `json:"strength"`
}

// Other returns the end of the edge opposite to id.
func (r SemanticRelationship) Other(id string) string {
	if r.SourceID == id {
		return r.TargetID
	}
	return r.SourceID
}

// ProceduralMemory is one step of a named procedure.
type ProceduralMemory struct {
	Base
	ProcedureName   string   `json:"procedure_name"`
	StepNumber      int      `json:"step_number"`
	Description     string   `json:"description"`
	Conditions      []string `json:"conditions,omitempty"`
	Actions         []string `json:"actions,omitempty"`
	ExpectedResults []string `json:"expected_results,omitempty"`
}

// ResourceType classifies an external artifact.
type ResourceType string

const (
	ResourceFile     ResourceType = "file"
	ResourceURL      ResourceType = "url"
	ResourceImage    ResourceType = "image"
	ResourceDocument ResourceType = "document"
)

// ValidResourceTypes are the allowed resource types.
var ValidResourceTypes = map[ResourceType]bool{
	ResourceFile:     true,
	ResourceURL:      true,
	ResourceImage:    true,
	ResourceDocument: true,
}

// ResourceMemory points at an external artifact.
type ResourceMemory struct {
	Base
	ResourceType ResourceType `json:"resource_type"`
	Name         string       `json:"name"`
	Location     string       `json:"location"`
	Summary      string       `json:"summary,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	AccessedAt   *time.Time   `json:"accessed_at,omitempty"`
}

// KnowledgeEntry is a validated domain fact in the knowledge vault.
type KnowledgeEntry struct {
	Base
	Domain      string     `json:"domain"`
	Topic       string     `json:"topic"`
	Content     string     `json:"content"`
	Source      string     `json:"source,omitempty"`
	Confidence  float64    `json:"confidence"`
	Embedding   []float32  `json:"embedding,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
}
