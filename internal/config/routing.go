package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

type routingFile struct {
	Routes map[string]string `yaml:"routes"`
}

// LoadRoutingTable returns the built-in table when path is empty, otherwise
// the built-in table overlaid with the routes declared in the YAML file:
//
//	routes:
//	  Invoice: Notify Finance Department (finance@kmrl.com)
func LoadRoutingTable(path string) (domain.RoutingTable, error) {
	if path == "" {
		return domain.DefaultRoutingTable(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RoutingTable{}, fmt.Errorf("read routing rules: %w", err)
	}

	var file routingFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.RoutingTable{}, fmt.Errorf("parse routing rules %s: %w", path, err)
	}

	table, err := domain.NewRoutingTable(file.Routes)
	if err != nil {
		return domain.RoutingTable{}, fmt.Errorf("routing rules %s: %w", path, err)
	}
	return table, nil
}
