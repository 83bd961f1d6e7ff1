package scoring

// Config is one immutable snapshot of the engine's tunable parameters.
// Reconfiguration replaces the whole value atomically; nothing mutates a
// Config after construction.
type Config struct {
	ViralThreshold float64
	MinSeedTemp    float64
	ScoreTier4     float64
	ScoreTier3     float64
	ScoreTier2     float64

	ColdFreezeHours float64
	ColdFreezeTemp  float64
}

// Defaults returns the built-in parameters. Stored config values overlay
// these; a missing or unreadable config store never blocks a cycle.
func Defaults() Config {
	return Config{
		ViralThreshold:  50.0,
		MinSeedTemp:     15.0,
		ScoreTier4:      500.0,
		ScoreTier3:      200.0,
		ScoreTier2:      100.0,
		ColdFreezeHours: 2.0,
		ColdFreezeTemp:  150.0,
	}
}

// FromMap overlays stored numeric parameters onto the defaults. Unknown keys
// are ignored so older config stores (gravity, velocity_* thresholds from the
// previous formula) still load cleanly.
func FromMap(values map[string]float64) Config {
	cfg := Defaults()
	overlay := map[string]*float64{
		"viral_threshold":   &cfg.ViralThreshold,
		"min_seed_temp":     &cfg.MinSeedTemp,
		"score_tier_4":      &cfg.ScoreTier4,
		"score_tier_3":      &cfg.ScoreTier3,
		"score_tier_2":      &cfg.ScoreTier2,
		"cold_freeze_hours": &cfg.ColdFreezeHours,
		"cold_freeze_temp":  &cfg.ColdFreezeTemp,
	}
	for key, dst := range overlay {
		if v, ok := values[key]; ok && v > 0 {
			*dst = v
		}
	}
	return cfg
}
