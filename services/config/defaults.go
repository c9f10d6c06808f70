package config

// defaultSections is the built-in services configuration, used when no file
// exists and to fill sections a partial file omits.
func defaultSections() map[string]any {
	return map[string]any{
		"heartbeat": map[string]any{
			"interval": 1,
		},
		"hal": map[string]any{
			"health_interval": 30,
			"grace_period":    120,
		},
	}
}
