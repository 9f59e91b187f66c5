// Package dataset loads the BIRD and Spider 1.0 benchmark files: training
// examples for retrieval, per-database schema vocabularies and dev questions.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Name identifies a supported benchmark.
type Name string

const (
	Bird     Name = "bird"
	Spider10 Name = "spider-1.0"
)

// ErrConfiguration is matched by every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an unsupported dataset or a missing file.
type ConfigurationError struct {
	Dataset string
	Path    string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Dataset != "" {
		msg = fmt.Sprintf("dataset %q: %s", e.Dataset, msg)
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ParseName normalizes s and checks it names a supported dataset.
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if err := n.Validate(); err != nil {
		return "", err
	}
	return n, nil
}

// Validate returns a ConfigurationError for unknown names.
func (n Name) Validate() error {
	switch n {
	case Bird, Spider10:
		return nil
	default:
		return &ConfigurationError{Dataset: string(n), Reason: "unsupported dataset, expected bird or spider-1.0"}
	}
}

// Example is one training question with its gold SQL.
type Example struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
	DBID     string `json:"db_id"`
}

// DatabaseSchema holds the lowercased table and column names of a database.
type DatabaseSchema struct {
	Tables  map[string]struct{}
	Columns map[string]struct{}
}

// SchemaIndex maps a database id to its schema vocabulary.
type SchemaIndex map[string]DatabaseSchema

// DevQuestion is one held-out benchmark question.
type DevQuestion struct {
	SortID   int
	DBID     string
	DBPath   string
	Question string
	GoldSQL  string
}
