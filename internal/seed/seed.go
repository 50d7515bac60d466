// Package seed loads persona definitions for the gurus collection.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"guruchat-backend/internal/models"
)

//go:embed gurus.toml
var defaultGurus string

type file struct {
	Gurus []models.Guru `toml:"gurus"`
}

// Default returns the built-in personas.
func Default() ([]models.Guru, error) {
	return Parse(defaultGurus)
}

// LoadFile reads personas from a TOML file on disk.
func LoadFile(path string) ([]models.Guru, error) {
	var f file
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}
	return validate(f.Gurus)
}

func Parse(data string) ([]models.Guru, error) {
	var f file
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gurus: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys: %v", undecoded)
	}
	return validate(f.Gurus)
}

func validate(gurus []models.Guru) ([]models.Guru, error) {
	if len(gurus) == 0 {
		return nil, errors.New("no gurus defined")
	}
	seen := make(map[string]bool, len(gurus))
	for i := range gurus {
		g := &gurus[i]
		g.Name = strings.TrimSpace(g.Name)
		g.Description = strings.TrimSpace(g.Description)
		g.SystemPrompt = strings.TrimSpace(g.SystemPrompt)
		if g.Name == "" {
			return nil, fmt.Errorf("guru #%d has no name", i+1)
		}
		if g.SystemPrompt == "" {
			return nil, fmt.Errorf("guru %q has no system_prompt", g.Name)
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("guru %q is defined twice", g.Name)
		}
		seen[g.Name] = true
	}
	return gurus, nil
}
