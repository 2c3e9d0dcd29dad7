package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/sixmem/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func base(id, user string) model.Base {
	return model.Base{ID: id, UserID: user, CreatedAt: t0, UpdatedAt: t0}
}

func TestInsertAndGet(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		validated := t0.Add(time.Hour)
		k := model.KnowledgeEntry{
			Base:        base("kv_1", "alice"),
			Domain:      "nutrition",
			Topic:       "allergens",
			Content:     "Peanuts are legumes",
			Source:      "textbook",
			Confidence:  0.9,
			Embedding:   []float32{0.1, 0.2, 0.3},
			ValidatedAt: &validated,
		}
		k.Metadata = map[string]any{"reviewer": "bob"}

		if err := s.Knowledge().Insert(ctx, k); err != nil {
			t.Fatalf("insert: %v", err)
		}
		got, ok, err := s.Knowledge().Get(ctx, "alice", "kv_1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !ok {
			t.Fatal("expected record to exist")
		}
		if got.Content != k.Content || got.Confidence != 0.9 {
			t.Errorf("expected %+v, got %+v", k, got)
		}
		if len(got.Embedding) != 3 || got.Embedding[2] != 0.3 {
			t.Errorf("expected embedding round-trip, got %v", got.Embedding)
		}
		if got.ValidatedAt == nil || !got.ValidatedAt.Equal(validated) {
			t.Errorf("expected validated_at %v, got %v", validated, got.ValidatedAt)
		}
		if got.Metadata["reviewer"] != "bob" {
			t.Errorf("expected metadata reviewer=bob, got %v", got.Metadata)
		}
		if !got.CreatedAt.Equal(t0) {
			t.Errorf("expected created_at %v, got %v", t0, got.CreatedAt)
		}
	})
}

func TestOwnerScoping(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Semantic().Insert(ctx, model.SemanticMemory{Base: base("sem_1", "alice"), Name: "cats"})

		if _, ok, _ := s.Semantic().Get(ctx, "bob", "sem_1"); ok {
			t.Error("expected record to be invisible to another owner")
		}
		list, _ := s.Semantic().List(ctx, "bob")
		if len(list) != 0 {
			t.Errorf("expected 0 records for bob, got %d", len(list))
		}
		ok, _ := s.Semantic().Replace(ctx, model.SemanticMemory{Base: base("sem_1", "bob"), Name: "dogs"})
		if ok {
			t.Error("expected replace by another owner to report false")
		}
		ok, _ = s.Semantic().Delete(ctx, "bob", "sem_1")
		if ok {
			t.Error("expected delete by another owner to report false")
		}
		got, _, _ := s.Semantic().Get(ctx, "alice", "sem_1")
		if got.Name != "cats" {
			t.Errorf("expected record untouched, got %q", got.Name)
		}
	})
}

func TestDeleteIdempotent(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Resources().Insert(ctx, model.ResourceMemory{
			Base: base("res_1", "alice"), ResourceType: model.ResourceURL, Name: "docs", Location: "https://example.com",
		})
		ok, err := s.Resources().Delete(ctx, "alice", "res_1")
		if err != nil || !ok {
			t.Fatalf("expected first delete true, got %v %v", ok, err)
		}
		ok, err = s.Resources().Delete(ctx, "alice", "res_1")
		if err != nil || ok {
			t.Fatalf("expected second delete false, got %v %v", ok, err)
		}
	})
}

func TestListInsertionOrder(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range []string{"epi_c", "epi_a", "epi_b"} {
			err := s.Episodic().Insert(ctx, model.EpisodicMemory{
				Base: base(id, "alice"), EventType: "chat", Summary: id, Actor: model.ActorUser,
				OccurredAt: t0, Seq: id, TreePath: []string{"root", id},
			})
			if err != nil {
				t.Fatalf("insert %s: %v", id, err)
			}
		}
		list, err := s.Episodic().List(ctx, "alice")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []string{"epi_c", "epi_a", "epi_b"}
		if len(list) != len(want) {
			t.Fatalf("expected %d records, got %d", len(want), len(list))
		}
		for i, id := range want {
			if list[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, list[i].ID)
			}
		}
		if len(list[0].TreePath) != 2 || list[0].TreePath[1] != "epi_c" {
			t.Errorf("expected tree path round-trip, got %v", list[0].TreePath)
		}
	})
}

func TestReplaceKeepsCreatedAt(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Core().Insert(ctx, model.CoreMemory{
			Base: base("core_1", "alice"), PersonaValue: "helpful", PersonaLimit: 100, HumanLimit: 100,
		})
		later := t0.Add(time.Hour)
		updated := model.CoreMemory{
			Base:         model.Base{ID: "core_1", UserID: "alice", CreatedAt: later, UpdatedAt: later},
			PersonaValue: "terse", PersonaLimit: 100, HumanValue: "Alice", HumanLimit: 100,
		}
		ok, err := s.Core().Replace(ctx, updated)
		if err != nil || !ok {
			t.Fatalf("replace: %v %v", ok, err)
		}
		got, _, _ := s.Core().Get(ctx, "alice", "core_1")
		if got.PersonaValue != "terse" || got.HumanValue != "Alice" {
			t.Errorf("expected updated values, got %+v", got)
		}
		if !got.CreatedAt.Equal(t0) {
			t.Errorf("expected created_at unchanged %v, got %v", t0, got.CreatedAt)
		}
		if !got.UpdatedAt.Equal(later) {
			t.Errorf("expected updated_at %v, got %v", later, got.UpdatedAt)
		}
	})
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Procedural().Insert(ctx, model.ProceduralMemory{
			Base: base("proc_1", "alice"), ProcedureName: "deploy", StepNumber: 1,
			Description: "build", Actions: []string{"make"},
		})
		got, _, _ := s.Procedural().Get(ctx, "alice", "proc_1")
		got.Actions[0] = "rm -rf"
		again, _, _ := s.Procedural().Get(ctx, "alice", "proc_1")
		if again.Actions[0] != "make" {
			t.Errorf("expected stored record unchanged, got %v", again.Actions)
		}
	})
}

func TestDeleteByNode(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range []string{"sem_a", "sem_b", "sem_c"} {
			s.Semantic().Insert(ctx, model.SemanticMemory{Base: base(id, "alice"), Name: id})
		}
		edges := []model.SemanticRelationship{
			{Base: base("rel_1", "alice"), SourceID: "sem_a", TargetID: "sem_b", RelationshipType: "related", Strength: 0.8},
			{Base: base("rel_2", "alice"), SourceID: "sem_c", TargetID: "sem_a", RelationshipType: "related", Strength: 0.4},
			{Base: base("rel_3", "alice"), SourceID: "sem_b", TargetID: "sem_c", RelationshipType: "related", Strength: 0.6},
		}
		for _, e := range edges {
			if err := s.Relationships().Insert(ctx, e); err != nil {
				t.Fatalf("insert %s: %v", e.ID, err)
			}
		}
		n, err := s.Relationships().DeleteByNode(ctx, "alice", "sem_a")
		if err != nil {
			t.Fatalf("delete by node: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 edges removed, got %d", n)
		}
		rest, _ := s.Relationships().List(ctx, "alice")
		if len(rest) != 1 || rest[0].ID != "rel_3" {
			t.Errorf("expected only rel_3 to remain, got %v", rest)
		}
	})
}

func TestSQLiteRelationshipCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Semantic().Insert(ctx, model.SemanticMemory{Base: base("sem_a", "alice"), Name: "a"})
	s.Semantic().Insert(ctx, model.SemanticMemory{Base: base("sem_b", "alice"), Name: "b"})
	s.Relationships().Insert(ctx, model.SemanticRelationship{
		Base: base("rel_1", "alice"), SourceID: "sem_a", TargetID: "sem_b", RelationshipType: "related", Strength: 0.5,
	})

	s.Semantic().Delete(ctx, "alice", "sem_b")
	n, _ := s.Relationships().Count(ctx, "alice")
	if n != 0 {
		t.Errorf("expected edge removed with its node, got %d", n)
	}
}

func TestInsertDuplicateID(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := model.SemanticMemory{Base: base("sem_1", "alice"), Name: "x"}
		if err := s.Semantic().Insert(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
		err := s.Semantic().Insert(ctx, rec)
		if !errors.Is(err, model.ErrStorage) {
			t.Errorf("expected storage error on duplicate id, got %v", err)
		}
	})
}

func TestStats(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Semantic().Insert(ctx, model.SemanticMemory{Base: base("sem_1", "alice"), Name: "x"})
		s.Semantic().Insert(ctx, model.SemanticMemory{Base: base("sem_2", "bob"), Name: "y"})
		s.Knowledge().Insert(ctx, model.KnowledgeEntry{
			Base: base("kv_1", "alice"), Domain: "d", Topic: "t", Content: "c", Confidence: 0.5,
		})

		st, err := s.Stats(ctx, "alice")
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if st.Total != 2 {
			t.Errorf("expected 2 records for alice, got %d", st.Total)
		}
		if st.Dimensions[model.DimensionSemantic] != 1 {
			t.Errorf("expected 1 semantic record, got %d", st.Dimensions[model.DimensionSemantic])
		}

		all, _ := s.Stats(ctx, "")
		if all.Total != 3 {
			t.Errorf("expected 3 records overall, got %d", all.Total)
		}
	})
}

func step(id string, n int, desc string) model.ProceduralMemory {
	return model.ProceduralMemory{Base: base(id, "alice"), ProcedureName: "bath", StepNumber: n, Description: desc}
}

func stepNumbers(t *testing.T, s Store) map[string]int {
	t.Helper()
	all, err := s.Procedural().List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	out := make(map[string]int, len(all))
	for _, p := range all {
		out[p.ID] = p.StepNumber
	}
	return out
}

func TestWriteBatch(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, id := range []string{"proc_1", "proc_2", "proc_3"} {
			if err := s.Procedural().Insert(ctx, step(id, i+1, "step "+id)); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}

		err := s.Procedural().Write(ctx, Batch[model.ProceduralMemory]{
			UserID:  "alice",
			Delete:  []string{"proc_1"},
			Replace: []model.ProceduralMemory{step("proc_2", 2, "step proc_2"), step("proc_3", 3, "step proc_3")},
			Insert:  []model.ProceduralMemory{step("proc_4", 1, "fill tub")},
		})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		want := map[string]int{"proc_2": 2, "proc_3": 3, "proc_4": 1}
		got := stepNumbers(t, s)
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for id, n := range want {
			if got[id] != n {
				t.Errorf("%s: expected step %d, got %d", id, n, got[id])
			}
		}
	})
}

func TestWriteBatchIsAtomic(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, id := range []string{"proc_1", "proc_2"} {
			if err := s.Procedural().Insert(ctx, step(id, i+1, "step "+id)); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}
		before := stepNumbers(t, s)

		// The shifts are valid but the insert reuses an id.
		err := s.Procedural().Write(ctx, Batch[model.ProceduralMemory]{
			UserID:  "alice",
			Replace: []model.ProceduralMemory{step("proc_1", 2, "step proc_1"), step("proc_2", 3, "step proc_2")},
			Insert:  []model.ProceduralMemory{step("proc_1", 1, "duplicate")},
		})
		if err == nil {
			t.Fatal("expected duplicate insert to fail the batch")
		}

		// A replace of a missing record fails the whole batch too.
		err = s.Procedural().Write(ctx, Batch[model.ProceduralMemory]{
			UserID:  "alice",
			Replace: []model.ProceduralMemory{step("proc_2", 1, "moved"), step("proc_9", 2, "ghost")},
		})
		if !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}

		after := stepNumbers(t, s)
		for id, n := range before {
			if after[id] != n {
				t.Errorf("%s: step changed from %d to %d by a failed batch", id, n, after[id])
			}
		}
		got, _, _ := s.Procedural().Get(ctx, "alice", "proc_2")
		if got.Description != "step proc_2" {
			t.Errorf("failed batch leaked a replace: %q", got.Description)
		}
	})
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryStore()
	src.Core().Insert(ctx, model.CoreMemory{Base: base("core_1", "alice"), PersonaLimit: 10, HumanLimit: 10})
	src.Semantic().Insert(ctx, model.SemanticMemory{Base: base("sem_a", "alice"), Name: "a"})
	src.Semantic().Insert(ctx, model.SemanticMemory{Base: base("sem_b", "alice"), Name: "b"})
	src.Relationships().Insert(ctx, model.SemanticRelationship{
		Base: base("rel_1", "alice"), SourceID: "sem_a", TargetID: "sem_b", RelationshipType: "related", Strength: 0.5,
	})

	snap, err := ExportAll(ctx, src, "alice")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newTestStore(t)
	n, err := Import(ctx, dst, snap)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 imported, got %d", n)
	}

	// Second import skips everything already present.
	n, err = Import(ctx, dst, snap)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 imported on re-import, got %d", n)
	}

	rels, _ := dst.Relationships().List(ctx, "alice")
	if len(rels) != 1 || rels[0].SourceID != "sem_a" {
		t.Errorf("expected relationship imported, got %v", rels)
	}
}

func TestImportRejectsForeignOwner(t *testing.T) {
	ctx := context.Background()
	snap := &Snapshot{
		UserID:   "alice",
		Semantic: []model.SemanticMemory{{Base: base("sem_1", "mallory"), Name: "x"}},
	}
	if _, err := Import(ctx, NewMemoryStore(), snap); err == nil {
		t.Error("expected error importing a record owned by another user")
	}
}

func TestOpen(t *testing.T) {
	s, err := Open("memory", "")
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	s.Close()

	if _, err := Open("postgres", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}
