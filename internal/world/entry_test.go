package world

import "testing"

func TestFlatLandHasUniformElevation(t *testing.T) {
	e := Land(3, 7, 0)
	if e.MinZ != 7 || e.AverageZ != 7 {
		t.Fatalf("expected min/avg 7, got %d/%d", e.MinZ, e.AverageZ)
	}
	for d := Direction(0); d < DirectionCount; d++ {
		if z := e.DirectionalZ(d); z != 7 {
			t.Fatalf("%v: expected 7, got %d", d, z)
		}
	}
}

func TestStretchedLandElevations(t *testing.T) {
	// Raised along the right and bottom corners: a slope rising to the east.
	e := StretchedLand(3, [4]int8{0, 10, 10, 0}, 0)
	if !e.Stretched {
		t.Fatalf("expected stretched land")
	}
	if e.MinZ != 0 {
		t.Fatalf("expected min 0, got %d", e.MinZ)
	}
	if e.AverageZ != 5 {
		t.Fatalf("expected average 5, got %d", e.AverageZ)
	}

	tests := []struct {
		dir  Direction
		want int
	}{
		{North, 5},
		{NorthEast, 10},
		{East, 10},
		{South, 5},
		{West, 0},
	}
	for _, tt := range tests {
		if got := e.DirectionalZ(tt.dir); got != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.dir, tt.want, got)
		}
	}
}

func TestStretchedLandAveragesFlatterDiagonal(t *testing.T) {
	// top/bottom differ by 20, left/right by 4: the left/right pair wins.
	e := StretchedLand(3, [4]int8{0, 6, 20, 2}, 0)
	if e.AverageZ != 4 {
		t.Fatalf("expected average 4, got %d", e.AverageZ)
	}
}

func TestAgentAmbulatory(t *testing.T) {
	tests := []struct {
		name  string
		agent AgentState
		want  bool
	}{
		{"alive", AgentState{}, true},
		{"paralyzed", AgentState{Paralyzed: true}, false},
		{"dying", AgentState{Dead: true}, false},
		{"ghost", AgentState{Dead: true, Ghost: true}, true},
	}
	for _, tt := range tests {
		if got := tt.agent.Ambulatory(); got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}
