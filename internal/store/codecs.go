package store

import (
	"database/sql"
	"time"

	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/model"
)

var coreCodec = codec[model.CoreMemory]{
	dimension: model.DimensionCore,
	table:     "core_memories",
	columns:   []string{"persona_value", "persona_limit", "human_value", "human_limit"},
	values: func(c model.CoreMemory) ([]any, error) {
		return []any{c.PersonaValue, c.PersonaLimit, c.HumanValue, c.HumanLimit}, nil
	},
	scan: func(row scanner) (model.CoreMemory, error) {
		var b baseRow
		var c model.CoreMemory
		if err := row.Scan(b.dest(&c.PersonaValue, &c.PersonaLimit, &c.HumanValue, &c.HumanLimit)...); err != nil {
			return c, err
		}
		var err error
		c.Base, err = b.base()
		return c, err
	},
}

var episodicCodec = codec[model.EpisodicMemory]{
	dimension: model.DimensionEpisodic,
	table:     "episodic_memories",
	columns: []string{"event_type", "summary", "details", "actor", "tree_path", "occurred_at",
		"summary_embedding", "details_embedding", "seq"},
	values: func(e model.EpisodicMemory) ([]any, error) {
		path, err := encodeJSON(e.TreePath)
		if err != nil {
			return nil, err
		}
		summary, err := embedding.EncodeVector(e.SummaryEmbedding)
		if err != nil {
			return nil, err
		}
		details, err := embedding.EncodeVector(e.DetailsEmbedding)
		if err != nil {
			return nil, err
		}
		return []any{e.EventType, e.Summary, e.Details, string(e.Actor), path,
			formatTime(e.OccurredAt), summary, details, e.Seq}, nil
	},
	scan: func(row scanner) (model.EpisodicMemory, error) {
		var b baseRow
		var e model.EpisodicMemory
		var actor, occurredAt string
		var path sql.NullString
		var summary, details []byte
		err := row.Scan(b.dest(&e.EventType, &e.Summary, &e.Details, &actor, &path, &occurredAt,
			&summary, &details, &e.Seq)...)
		if err != nil {
			return e, err
		}
		if e.Base, err = b.base(); err != nil {
			return e, err
		}
		e.Actor = model.Actor(actor)
		e.OccurredAt, _ = time.Parse(time.RFC3339Nano, occurredAt)
		if e.TreePath, err = decodeStrings(path); err != nil {
			return e, err
		}
		if e.SummaryEmbedding, err = embedding.DecodeVector(summary); err != nil {
			return e, err
		}
		e.DetailsEmbedding, err = embedding.DecodeVector(details)
		return e, err
	},
}

var semanticCodec = codec[model.SemanticMemory]{
	dimension: model.DimensionSemantic,
	table:     "semantic_memories",
	columns:   []string{"name", "description", "category", "embedding"},
	values: func(s model.SemanticMemory) ([]any, error) {
		vec, err := embedding.EncodeVector(s.Embedding)
		if err != nil {
			return nil, err
		}
		return []any{s.Name, s.Description, s.Category, vec}, nil
	},
	scan: func(row scanner) (model.SemanticMemory, error) {
		var b baseRow
		var s model.SemanticMemory
		var vec []byte
		err := row.Scan(b.dest(&s.Name, &s.Description, &s.Category, &vec)...)
		if err != nil {
			return s, err
		}
		if s.Base, err = b.base(); err != nil {
			return s, err
		}
		s.Embedding, err = embedding.DecodeVector(vec)
		return s, err
	},
}

// Endpoints are identity fields; Replace rewrites them with the same values.
var relationshipCodec = codec[model.SemanticRelationship]{
	dimension: model.DimensionRelationship,
	table:     "semantic_relationships",
	columns:   []string{"source_id", "target_id", "relationship_type", "strength"},
	values: func(r model.SemanticRelationship) ([]any, error) {
		return []any{r.SourceID, r.TargetID, r.RelationshipType, r.Strength}, nil
	},
	scan: func(row scanner) (model.SemanticRelationship, error) {
		var b baseRow
		var r model.SemanticRelationship
		err := row.Scan(b.dest(&r.SourceID, &r.TargetID, &r.RelationshipType, &r.Strength)...)
		if err != nil {
			return r, err
		}
		r.Base, err = b.base()
		return r, err
	},
}

var proceduralCodec = codec[model.ProceduralMemory]{
	dimension: model.DimensionProcedural,
	table:     "procedural_memories",
	columns:   []string{"procedure_name", "step_number", "description", "conditions", "actions", "expected_results"},
	values: func(p model.ProceduralMemory) ([]any, error) {
		conds, err := encodeJSON(p.Conditions)
		if err != nil {
			return nil, err
		}
		actions, err := encodeJSON(p.Actions)
		if err != nil {
			return nil, err
		}
		results, err := encodeJSON(p.ExpectedResults)
		if err != nil {
			return nil, err
		}
		return []any{p.ProcedureName, p.StepNumber, p.Description, conds, actions, results}, nil
	},
	scan: func(row scanner) (model.ProceduralMemory, error) {
		var b baseRow
		var p model.ProceduralMemory
		var conds, actions, results sql.NullString
		err := row.Scan(b.dest(&p.ProcedureName, &p.StepNumber, &p.Description, &conds, &actions, &results)...)
		if err != nil {
			return p, err
		}
		if p.Base, err = b.base(); err != nil {
			return p, err
		}
		if p.Conditions, err = decodeStrings(conds); err != nil {
			return p, err
		}
		if p.Actions, err = decodeStrings(actions); err != nil {
			return p, err
		}
		p.ExpectedResults, err = decodeStrings(results)
		return p, err
	},
}

var resourceCodec = codec[model.ResourceMemory]{
	dimension: model.DimensionResource,
	table:     "resource_memories",
	columns:   []string{"resource_type", "name", "location", "summary", "tags", "accessed_at"},
	values: func(r model.ResourceMemory) ([]any, error) {
		tags, err := encodeJSON(r.Tags)
		if err != nil {
			return nil, err
		}
		return []any{string(r.ResourceType), r.Name, r.Location, r.Summary, tags, formatTimePtr(r.AccessedAt)}, nil
	},
	scan: func(row scanner) (model.ResourceMemory, error) {
		var b baseRow
		var r model.ResourceMemory
		var kind string
		var tags, accessed sql.NullString
		err := row.Scan(b.dest(&kind, &r.Name, &r.Location, &r.Summary, &tags, &accessed)...)
		if err != nil {
			return r, err
		}
		if r.Base, err = b.base(); err != nil {
			return r, err
		}
		r.ResourceType = model.ResourceType(kind)
		r.AccessedAt = parseTimePtr(accessed)
		r.Tags, err = decodeStrings(tags)
		return r, err
	},
}

var knowledgeCodec = codec[model.KnowledgeEntry]{
	dimension: model.DimensionKnowledge,
	table:     "knowledge_vault",
	columns:   []string{"domain", "topic", "content", "source", "confidence", "embedding", "validated_at"},
	values: func(k model.KnowledgeEntry) ([]any, error) {
		vec, err := embedding.EncodeVector(k.Embedding)
		if err != nil {
			return nil, err
		}
		return []any{k.Domain, k.Topic, k.Content, k.Source, k.Confidence, vec, formatTimePtr(k.ValidatedAt)}, nil
	},
	scan: func(row scanner) (model.KnowledgeEntry, error) {
		var b baseRow
		var k model.KnowledgeEntry
		var vec []byte
		var validated sql.NullString
		err := row.Scan(b.dest(&k.Domain, &k.Topic, &k.Content, &k.Source, &k.Confidence, &vec, &validated)...)
		if err != nil {
			return k, err
		}
		if k.Base, err = b.base(); err != nil {
			return k, err
		}
		k.ValidatedAt = parseTimePtr(validated)
		k.Embedding, err = embedding.DecodeVector(vec)
		return k, err
	},
}
