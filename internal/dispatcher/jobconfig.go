package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/litreview/engine/internal/config"
)

// decodeJobConfig round-trips a job's persisted Config map through JSON
// into the typed config.JobConfig, since internal/model.Job stores it as
// map[string]any to stay decoupled from internal/config.
func decodeJobConfig(raw map[string]any) (config.JobConfig, error) {
	var cfg config.JobConfig
	if raw == nil {
		return cfg, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return cfg, fmt.Errorf("marshaling job config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshaling job config: %w", err)
	}
	return cfg, nil
}
