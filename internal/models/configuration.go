package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConfigurationType defines supported types for configuration values.
type ConfigurationType string

const (
	ConfigurationTypeString ConfigurationType = "STRING"
	ConfigurationTypeJSON   ConfigurationType = "JSON"
)

// Keys of the grading settings stored in the configurations table.
const (
	ConfigKeyGradingWeights  = "grading.weights"
	ConfigKeyGradingSubjects = "grading.subjects"
)

// Configuration is one row of the key/value settings table. The grading weights
// and subjects tables are stored here as JSON documents.
type Configuration struct {
	Key         string            `db:"key" json:"key"`
	Value       string            `db:"value" json:"value"`
	Type        ConfigurationType `db:"type" json:"type"`
	Description *string           `db:"description" json:"description,omitempty"`
	UpdatedBy   *string           `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// NewJSONConfiguration encodes value as a JSON setting.
func NewJSONConfiguration(key string, value interface{}, description string, updatedBy *string) (*Configuration, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode setting %s: %w", key, err)
	}
	cfg := &Configuration{Key: key, Value: string(payload), Type: ConfigurationTypeJSON, UpdatedBy: updatedBy}
	if description != "" {
		cfg.Description = &description
	}
	return cfg, nil
}

// DecodeJSON unmarshals a JSON setting into dest.
func (c Configuration) DecodeJSON(dest interface{}) error {
	if c.Type != ConfigurationTypeJSON {
		return fmt.Errorf("setting %s is %s, not JSON", c.Key, c.Type)
	}
	if err := json.Unmarshal([]byte(c.Value), dest); err != nil {
		return fmt.Errorf("decode setting %s: %w", c.Key, err)
	}
	return nil
}
