package containerstack

import (
	"encoding/json"
	"strings"
)

type composePsEntry struct {
	Service string `json:"Service"`
	State   string `json:"State"`
	Health  string `json:"Health"`
}

// parseComposeStatusJSON parses `docker compose ps --format json`
// output, which is one JSON object per line.
func parseComposeStatusJSON(stdout string) StackStatus {
	status := StackStatus{Services: make(map[string]ServiceStatus)}
	dec := json.NewDecoder(strings.NewReader(stdout))
	for {
		var entry composePsEntry
		if err := dec.Decode(&entry); err != nil {
			break
		}
		if entry.Service == "" {
			continue
		}
		status.Services[entry.Service] = ServiceStatus{
			State:   entry.State,
			Health:  entry.Health,
			Running: entry.State == "running",
		}
	}
	return status
}

type composeLsEntry struct {
	Name string `json:"Name"`
}

// parseComposeNameListJSON parses `docker compose ls --format json`.
func parseComposeNameListJSON(stdout string) []string {
	var entries []composeLsEntry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}
