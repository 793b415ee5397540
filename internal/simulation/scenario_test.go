package simulation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/neurogrow/internal/models"
)

const demoScenario = `
name: demo
ticks: 12
seeds:
  - at: {x: 0, y: 0, z: 0}
  - layer: 1
    random: 4
stimuli:
  - tick: 1
    every: 3
    until: 7
    at: {x: 0, y: 0, z: 0}
    excitatory: 1.5
    reward: 0.2
growth:
  - tick: 0
    from: {x: 0, y: 0, z: 0}
    to: {x: 2, y: 1, z: 2}
matches:
  - tick: 4
    inputs: [{x: 0, y: 0, z: 0}]
    outputs: [{x: 1, y: 1, z: 1}, {x: -1, y: 0, z: 1}]
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(demoScenario))
	if err != nil {
		t.Fatalf("ParseScenario() error = %v", err)
	}
	if sc.Name != "demo" || sc.Ticks != 12 {
		t.Errorf("header = %q/%d", sc.Name, sc.Ticks)
	}
	if len(sc.Seeds) != 2 || sc.Seeds[0].At == nil || *sc.Seeds[0].At != models.Pos(0, 0, 0) {
		t.Errorf("seeds = %+v", sc.Seeds)
	}
	if sc.Seeds[1].Layer != 1 || sc.Seeds[1].Random != 4 {
		t.Errorf("random seed = %+v", sc.Seeds[1])
	}
	if len(sc.Stimuli) != 1 || sc.Stimuli[0].Every != 3 || sc.Stimuli[0].Reward != 0.2 {
		t.Errorf("stimuli = %+v", sc.Stimuli)
	}
	if len(sc.Growth) != 1 || sc.Growth[0].To != models.Pos(2, 1, 2) {
		t.Errorf("growth = %+v", sc.Growth)
	}
	if len(sc.Matches) != 1 || len(sc.Matches[0].Outputs) != 2 {
		t.Errorf("matches = %+v", sc.Matches)
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	if err := os.WriteFile(path, []byte(demoScenario), 0644); err != nil {
		t.Fatal(err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario() error = %v", err)
	}
	if sc.Name != "demo" {
		t.Errorf("Name = %q", sc.Name)
	}

	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadScenario() expected error for missing file")
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "name: [unterminated"},
		{"negative ticks", "ticks: -1"},
		{"empty seed", "seeds: [{}]"},
		{"seed with both", "seeds: [{at: {x: 0, y: 0, z: 0}, random: 2}]"},
		{"negative every", "stimuli: [{tick: 0, every: -1, at: {x: 0, y: 0, z: 0}}]"},
		{"until before tick", "stimuli: [{tick: 5, until: 2, at: {x: 0, y: 0, z: 0}}]"},
		{"negative growth tick", "growth: [{tick: -2, from: {x: 0, y: 0, z: 0}, to: {x: 0, y: 0, z: 1}}]"},
		{"empty match", "matches: [{tick: 0, inputs: [{x: 0, y: 0, z: 0}]}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScenario([]byte(tt.yaml)); err == nil {
				t.Error("ParseScenario() expected error")
			}
		})
	}
}

func TestStimulusSpec_Active(t *testing.T) {
	once := StimulusSpec{Tick: 2}
	repeating := StimulusSpec{Tick: 1, Every: 3, Until: 7}
	forever := StimulusSpec{Tick: 0, Every: 5}

	tests := []struct {
		name string
		spec StimulusSpec
		tick int64
		want bool
	}{
		{"once before", once, 1, false},
		{"once at", once, 2, true},
		{"once after", once, 3, false},
		{"repeat start", repeating, 1, true},
		{"repeat off beat", repeating, 2, false},
		{"repeat on beat", repeating, 4, true},
		{"repeat last", repeating, 7, true},
		{"repeat past until", repeating, 10, false},
		{"forever", forever, 100, true},
		{"forever off beat", forever, 101, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Active(tt.tick); got != tt.want {
				t.Errorf("Active(%d) = %v, want %v", tt.tick, got, tt.want)
			}
		})
	}
}
