package scoring

import "testing"

func TestFromMap_OverlaysDefaults(t *testing.T) {
	cfg := FromMap(map[string]float64{
		"viral_threshold":      72.5,
		"cold_freeze_temp":     120,
		"gravity":              1.8, // legacy key, ignored
		"velocity_fast_rising": 2.5, // legacy key, ignored
	})

	if cfg.ViralThreshold != 72.5 {
		t.Errorf("ViralThreshold = %v, want 72.5", cfg.ViralThreshold)
	}
	if cfg.ColdFreezeTemp != 120 {
		t.Errorf("ColdFreezeTemp = %v, want 120", cfg.ColdFreezeTemp)
	}
	// Untouched keys keep their defaults.
	if cfg.MinSeedTemp != Defaults().MinSeedTemp {
		t.Errorf("MinSeedTemp = %v, want default %v", cfg.MinSeedTemp, Defaults().MinSeedTemp)
	}
}

func TestFromMap_IgnoresNonPositiveValues(t *testing.T) {
	cfg := FromMap(map[string]float64{
		"viral_threshold": 0,
		"min_seed_temp":   -3,
	})
	if cfg != Defaults() {
		t.Errorf("non-positive stored values must not override defaults: %+v", cfg)
	}
}

func TestDefaults_TiersStrictlyOrdered(t *testing.T) {
	cfg := Defaults()
	if !(cfg.ScoreTier4 > cfg.ScoreTier3 && cfg.ScoreTier3 > cfg.ScoreTier2 && cfg.ScoreTier2 > 0) {
		t.Errorf("rating tiers must be strictly ordered: %+v", cfg)
	}
}
