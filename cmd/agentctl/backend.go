package main

import (
	"encoding/json"
	"os"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
)

func readRemoteBackendConfig(path string) (remoteBackendConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return remoteBackendConfig{}, errs.Wrap(errs.KindConfiguration, err, "read tasks_backend config %s", path)
	}
	var rc remoteBackendConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		return remoteBackendConfig{}, errs.Wrap(errs.KindConfiguration, err, "parse tasks_backend config %s", path)
	}
	if rc.BaseURL == "" {
		return remoteBackendConfig{}, errs.New(errs.KindConfiguration, "tasks_backend config %s: base_url is required", path)
	}
	if rc.CachePath == "" {
		rc.CachePath = ".agentctl/remote-cache.json"
	}
	return rc, nil
}
