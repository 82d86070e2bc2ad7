package match

import (
	"testing"

	"online-breakout/internal/game"
)

func TestFramePoolEmpty(t *testing.T) {
	if NewFramePool().AcquireRead() != nil {
		t.Error("Expected no frame before the first publish")
	}
}

// TestFramePoolLatest verifies readers always get the last published frame
// and that slots are reused without carrying stale entities.
func TestFramePoolLatest(t *testing.T) {
	pool := NewFramePool()

	for i := 1; i <= 5; i++ {
		f := pool.AcquireWrite()
		for j := 0; j < i; j++ {
			f.Entities = append(f.Entities, EntityView{ID: game.EntityID(j)})
		}
		f.Tick = i
		pool.PublishWrite()

		got := pool.AcquireRead()
		if got.Tick != i || len(got.Entities) != i {
			t.Errorf("Publish %d: read tick %d with %d entities", i, got.Tick, len(got.Entities))
		}
		if got.Sequence != uint64(i) {
			t.Errorf("Publish %d: sequence %d", i, got.Sequence)
		}
	}
}

func TestFillIncludesItems(t *testing.T) {
	s := game.NewEmptyState()
	s.SpawnItem(game.Team1, game.ItemMultiBall, game.Vec2{X: 10, Y: 20})

	var f Frame
	fill(&f, s)
	if len(f.Entities) != 1 {
		t.Fatalf("Expected one entity, got %d", len(f.Entities))
	}
	e := f.Entities[0]
	if e.Kind != game.KindItem || e.Item != game.ItemMultiBall || e.Half.X != game.ItemHalfSize {
		t.Errorf("Unexpected item view %+v", e)
	}
}
