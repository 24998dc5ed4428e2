package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/guardrail/internal/domain/model"
)

// loadManifest reads a JSON (.json) or YAML manifest. Unknown fields are
// rejected in both formats; "-" reads YAML or JSON from stdin.
func loadManifest(path string, stdin io.Reader) (model.Manifest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var m model.Manifest
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&m)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			err = errors.New("empty document")
		}
	}
	if err != nil {
		return model.Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Name == "" && path != "-" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}
