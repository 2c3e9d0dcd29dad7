package store

import (
	"context"
	"os"

	"github.com/rcliao/sixmem/internal/model"
)

// Stats holds storage statistics.
type Stats struct {
	Backend       string                  `json:"backend"`
	DBPath        string                  `json:"db_path,omitempty"`
	DBSizeBytes   int64                   `json:"db_size_bytes,omitempty"`
	UserID        string                  `json:"user_id,omitempty"`
	Total         int                     `json:"total"`
	Relationships int                     `json:"relationships"`
	Dimensions    map[model.Dimension]int `json:"dimensions"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, userID string) (*Stats, error) {
	st := &Stats{Backend: "sqlite", DBPath: s.path, UserID: userID}

	// DB file size
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}
	return st, countAll(ctx, s, userID, st)
}

// Stats returns per-dimension counts.
func (s *MemoryStore) Stats(ctx context.Context, userID string) (*Stats, error) {
	st := &Stats{Backend: "memory", UserID: userID}
	return st, countAll(ctx, s, userID, st)
}

func countAll(ctx context.Context, s Store, userID string, st *Stats) error {
	counters := map[model.Dimension]func(context.Context, string) (int, error){
		model.DimensionCore:       s.Core().Count,
		model.DimensionEpisodic:   s.Episodic().Count,
		model.DimensionSemantic:   s.Semantic().Count,
		model.DimensionProcedural: s.Procedural().Count,
		model.DimensionResource:   s.Resources().Count,
		model.DimensionKnowledge:  s.Knowledge().Count,
	}
	st.Dimensions = make(map[model.Dimension]int, len(counters))
	for d, count := range counters {
		n, err := count(ctx, userID)
		if err != nil {
			return err
		}
		st.Dimensions[d] = n
		st.Total += n
	}
	n, err := s.Relationships().Count(ctx, userID)
	if err != nil {
		return err
	}
	st.Relationships = n
	return nil
}
