// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/assocvote/models"
)

type operatorsFile struct {
	Operators []models.Operator `yaml:"operators"`
}

// LoadEnv reads KEY=VALUE pairs from the given .env files into the process
// environment. Variables already set are left alone and missing files are
// skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("failed to load %s: %w", p, err)
	}
	return nil
}

// LoadOperators parses the operators YAML file:
//
//	operators:
//	  - name: alice
//	    role: superuser
//	    key_hash: $2a$10$...
func LoadOperators(path string) ([]models.Operator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read operators file: %w", err)
	}

	var f operatorsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse operators file: %w", err)
	}

	seen := make(map[string]bool)
	for i, op := range f.Operators {
		if op.Name == "" {
			return nil, fmt.Errorf("operator #%d has no name", i+1)
		}
		if seen[op.Name] {
			return nil, fmt.Errorf("operator %q listed twice", op.Name)
		}
		seen[op.Name] = true

		switch op.Role {
		case models.RoleStaff, models.RoleSuperuser:
		case "":
			f.Operators[i].Role = models.RoleStaff
		default:
			return nil, fmt.Errorf("operator %q has unknown role %q", op.Name, op.Role)
		}
		if op.KeyHash == "" {
			return nil, fmt.Errorf("operator %q has no key_hash", op.Name)
		}
	}

	return f.Operators, nil
}
