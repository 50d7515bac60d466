package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasSevenPersonas(t *testing.T) {
	gurus, err := Default()
	require.NoError(t, err)
	require.Len(t, gurus, 7)

	names := make([]string, len(gurus))
	for i, g := range gurus {
		names[i] = g.Name
		assert.NotEmpty(t, g.Description, g.Name)
		assert.True(t, strings.HasPrefix(g.SystemPrompt, "You are "+g.Name), g.Name)
	}
	assert.Contains(t, names, "Brené Brown")
	assert.Contains(t, names, "Jocko Willink")
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"missing prompt", "[[gurus]]\nname = \"A\"\n"},
		{"missing name", "[[gurus]]\nsystem_prompt = \"x\"\n"},
		{"duplicate", "[[gurus]]\nname = \"A\"\nsystem_prompt = \"x\"\n[[gurus]]\nname = \"A\"\nsystem_prompt = \"y\"\n"},
		{"unknown key", "[[gurus]]\nname = \"A\"\nsystem_prompt = \"x\"\nmood = \"calm\"\n"},
		{"bad syntax", "[[gurus]\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.data)
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gurus.toml")
	data := "[[gurus]]\nname = \"  Socrates \"\ndescription = \"Asks questions.\"\nsystem_prompt = '''\nYou are Socrates.\n'''\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	gurus, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, gurus, 1)
	assert.Equal(t, "Socrates", gurus[0].Name)
	assert.Equal(t, "You are Socrates.", gurus[0].SystemPrompt)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
