package delegation

import (
	"testing"

	"github.com/seralin/drover/pkg/models"
)

func availableWorker(name string, load, maxLoad int, caps ...string) *models.Worker {
	return &models.Worker{
		Name:         name,
		Status:       models.WorkerStatusAvailable,
		Capabilities: caps,
		CurrentLoad:  load,
		MaxLoad:      maxLoad,
	}
}

func TestRankPrefersFullOverlap(t *testing.T) {
	workers := []*models.Worker{
		availableWorker("none", 0, 2, "chat"),
		availableWorker("partial", 0, 2, "coding"),
		availableWorker("full", 0, 2, "coding", "research"),
	}

	ranked := RankByCapability(workers, []string{"coding", "research"}, nil)

	want := []string{"full", "partial", "none"}
	for i, name := range want {
		if ranked[i].Worker.Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, ranked[i].Worker.Name)
		}
	}
	if ranked[0].Score != 1.0 {
		t.Errorf("expected full overlap score 1.0, got %f", ranked[0].Score)
	}
	if ranked[1].Score != 0.5 {
		t.Errorf("expected partial overlap score 0.5, got %f", ranked[1].Score)
	}
	if ranked[2].Score != 0 {
		t.Errorf("expected zero overlap score 0, got %f", ranked[2].Score)
	}
}

func TestRankOverlapBeatsSuccessRate(t *testing.T) {
	// A has a success history but lacks the required tag; B has failed every
	// task but declares it. The tag wins.
	tracker := NewTracker()
	tracker.Record("a", true, 100)
	for i := 0; i < 4; i++ {
		tracker.Record("a", false, 0)
	}
	for i := 0; i < 3; i++ {
		tracker.Record("b", false, 0)
	}

	workers := []*models.Worker{
		availableWorker("a", 0, 2, "coding"),
		availableWorker("b", 0, 2, "coding", "research"),
	}

	ranked := RankByCapability(workers, []string{"research"}, tracker.Rate)
	if ranked[0].Worker.Name != "b" {
		t.Fatalf("expected b to rank first, got %s", ranked[0].Worker.Name)
	}
	if conf := Confidence(ranked[0].Score); conf <= 0.5 {
		t.Errorf("expected confidence above 0.5 for a full match, got %f", conf)
	}
}

func TestRankTieBreaksOnSuccessRate(t *testing.T) {
	tracker := NewTracker()
	tracker.Record("steady", true, 100)
	tracker.Record("flaky", true, 100)
	tracker.Record("flaky", false, 0)

	workers := []*models.Worker{
		availableWorker("flaky", 0, 2, "coding"),
		availableWorker("steady", 0, 2, "coding"),
	}

	ranked := RankByCapability(workers, []string{"coding"}, tracker.Rate)
	if ranked[0].Worker.Name != "steady" {
		t.Errorf("expected steady first on success rate, got %s", ranked[0].Worker.Name)
	}
}

func TestRankTieBreaksOnLoad(t *testing.T) {
	workers := []*models.Worker{
		availableWorker("loaded", 1, 2, "coding"),
		availableWorker("idle", 0, 2, "coding"),
	}

	ranked := RankByCapability(workers, []string{"coding"}, nil)
	if ranked[0].Worker.Name != "idle" {
		t.Errorf("expected idle first on load, got %s", ranked[0].Worker.Name)
	}
}

func TestRankUnseenWorkersCountAsHalf(t *testing.T) {
	tracker := NewTracker()
	tracker.Record("proven", true, 100)

	workers := []*models.Worker{
		availableWorker("fresh", 0, 2, "coding"),
		availableWorker("proven", 0, 2, "coding"),
	}

	ranked := RankByCapability(workers, []string{"coding"}, tracker.Rate)
	if ranked[0].Worker.Name != "proven" {
		t.Errorf("expected proven (rate 1.0) over fresh (rate 0.5), got %s", ranked[0].Worker.Name)
	}
}

func TestConfidenceBounds(t *testing.T) {
	if got := Confidence(0); got != 0.5 {
		t.Errorf("expected confidence 0.5 at score 0, got %f", got)
	}
	if got := Confidence(1); got != 0.9 {
		t.Errorf("expected confidence capped at 0.9, got %f", got)
	}
	if got := Confidence(0.5); got != 0.7 {
		t.Errorf("expected confidence 0.7 at score 0.5, got %f", got)
	}
}
