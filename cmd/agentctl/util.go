package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

func jsonUnmarshalInto(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errs.Wrap(errs.KindConfiguration, err, "parse json")
	}
	return nil
}

func jsonWriteIndented(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, err, "marshal %s", path)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.KindConfiguration, err, "write %s", path)
	}
	return nil
}
