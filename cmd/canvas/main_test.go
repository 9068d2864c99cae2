package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/canvasbuilder/internal/cli"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scriptedYAML = `
provider:
  kind: scripted
  retries: 1
  rps: 0
  replies:
    - '{"intent":"AddNode","confidence":0.95,"entities":{"nodeType":"approval","nodeLabel":"Legal review"}}'
log:
  level: error
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.True(t, strings.HasPrefix(out, "canvas version "))
}

func TestClassifyCommand(t *testing.T) {
	cfg := writeFile(t, "canvas.yaml", scriptedYAML)

	out := execute(t, "classify", "--config", cfg, "add", "a", "legal", "review")

	var res cli.ClassifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.IntentAddNode, res.Classification.Category)
	assert.False(t, res.NeedsClarification)
}

func TestTurnCommand_Mermaid(t *testing.T) {
	cfg := writeFile(t, "canvas.yaml", scriptedYAML)
	canvas := writeFile(t, "canvas.json", `{"node_count":1,"nodes":[{"id":"start","type":"start","label":"Start"}]}`)

	out := execute(t, "turn", "--config", cfg, "--canvas", canvas, "--mermaid", "add a legal review")

	assert.Contains(t, out, `start(("Start <br/> start"))`)
	assert.Contains(t, out, "Legal review <br/> approval")
	assert.Contains(t, out, "classDef added")
}
