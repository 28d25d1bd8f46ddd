package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/jobflow/internal/catalog"
	"github.com/rendis/jobflow/pkg/schema"
)

const sampleDoc = `{
  "cells": [
    {"id": "begin", "shape": "start", "position": {"x": 470, "y": 40}, "size": {"width": 60, "height": 60}},
    {"id": "cmd", "shape": "Shell", "position": {"x": 430, "y": 300}, "size": {"width": 140, "height": 40},
     "data": {"label": "List files", "shell": ["ls", "-l"]}},
    {"id": "finish", "shape": "end", "position": {"x": 470, "y": 600}, "size": {"width": 60, "height": 60}},
    {"id": "e1", "shape": "edge", "source": {"nodeId": "begin", "portId": "out"}, "target": {"nodeId": "cmd", "portId": "in"}},
    {"id": "e2", "shape": "edge", "source": {"nodeId": "cmd", "portId": "out"}, "target": {"nodeId": "finish", "portId": "in"}}
  ]
}`

// runCLI executes the root command with an isolated config and database.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{
		"--config", filepath.Join(dir, "settings.toml"),
		"--db-path", filepath.Join(dir, "jobflow.db"),
		"--log-level", "error",
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- version ---

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

// --- validate ---

func TestValidateCommand_OK(t *testing.T) {
	out, err := runCLI(t, "validate", writeFile(t, "flow.json", sampleDoc))
	require.NoError(t, err)
	assert.Contains(t, out, "ok (5 cells)")
}

func TestValidateCommand_Malformed(t *testing.T) {
	_, err := runCLI(t, "validate", writeFile(t, "flow.json", `{"cells": [{"id": "x"}]}`))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeMalformedDocument))
}

func TestValidateCommand_UnknownType(t *testing.T) {
	doc := strings.Replace(sampleDoc, `"shape": "Shell"`, `"shape": "Teleport"`, 1)
	_, err := runCLI(t, "validate", writeFile(t, "flow.json", doc))
	require.Error(t, err)
	fe, ok := schema.AsFlowError(err)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeMalformedDocument, fe.Code)
}

// --- compile ---

func TestCompileCommand(t *testing.T) {
	out, err := runCLI(t, "compile", writeFile(t, "flow.json", sampleDoc))
	require.NoError(t, err)

	var got struct {
		Nodes       []map[string]any `json:"nodes"`
		Edges       []map[string]any `json:"edges"`
		StartNodeID string           `json:"startNodeId"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got.Nodes, 3)
	assert.Len(t, got.Edges, 2)
}

// --- diagram ---

func TestDiagramCommand_Mermaid(t *testing.T) {
	out, err := runCLI(t, "diagram", writeFile(t, "flow.json", sampleDoc), "--title", "nightly")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "%% nightly")
	assert.Contains(t, out, "begin")
}

func TestDiagramCommand_UnknownFormat(t *testing.T) {
	_, err := runCLI(t, "diagram", writeFile(t, "flow.json", sampleDoc), "--format", "gif")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestDiagramCommand_OutFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "flow.mmd")
	_, err := runCLI(t, "diagram", writeFile(t, "flow.json", sampleDoc), "--out", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "graph TD")
}

// --- catalog ---

func TestCatalogCommand(t *testing.T) {
	out, err := runCLI(t, "catalog")
	require.NoError(t, err)
	var groups []catalog.PaletteGroup
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	require.NotEmpty(t, groups)
	assert.Equal(t, "base", groups[0].ID)
}

func TestCatalogCommand_ExtraFile(t *testing.T) {
	extra := writeFile(t, "extra.yaml", `
categories:
  - id: cloud
    name: Cloud
types:
  - id: S3Upload
    name: Upload to S3
    category: cloud
    fields:
      - {prop: bucket, label: Bucket, type: input, required: true}
`)
	out, err := runCLI(t, "catalog", "--file", extra)
	require.NoError(t, err)
	var groups []catalog.PaletteGroup
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	last := groups[len(groups)-1]
	assert.Equal(t, "cloud", last.ID)
	require.Len(t, last.Types, 1)
	assert.Equal(t, "S3Upload", last.Types[0].ID)
}

// --- install ---

func TestInstallCommand_WritesSettings(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "--log-level", "error", "install", "--listen-addr", ":4300"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Config written to")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":4300", cfg.ListenAddr)
}

func TestInstallCommand_RejectsRedisWithoutURL(t *testing.T) {
	_, err := runCLI(t, "install", "--event-hub", "redis")
	require.Error(t, err)
}
