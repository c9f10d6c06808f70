// Package config distributes runtime service settings over the bus: each
// top-level section of the services file is published as a retained message
// on config/<section>, so services pick their settings up whenever they
// connect and see live updates when Reload runs.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"mowercode-go/bus"
)

const configPrefix = "config"

// Service publishes per-service settings sections.
type Service struct {
	log  *slog.Logger
	path string
}

func New(log *slog.Logger, path string) *Service {
	return &Service{log: log.With("comp", "config"), path: path}
}

// Start publishes the current file contents, then returns. Sections arrive
// as retained messages, so start order relative to consumers does not
// matter.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	return s.Reload(conn)
}

// Reload re-reads the file and republishes every section. A missing file
// publishes the built-in defaults.
func (s *Service) Reload(conn *bus.Connection) error {
	sections, err := s.load()
	if err != nil {
		return err
	}
	for name, payload := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, name), payload, true))
		s.log.Debug("published section", "section", name)
	}
	return nil
}

func (s *Service) load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return defaultSections(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", s.path, err)
	}
	var sections map[string]any
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", s.path, err)
	}
	// Sections present in neither file nor defaults just do not exist;
	// defaults only fill missing standard sections.
	for name, payload := range defaultSections() {
		if _, ok := sections[name]; !ok {
			sections[name] = payload
		}
	}
	return sections, nil
}
