package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadRulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	writeRules(t, path, `{"Ciro": {"route": "/gelir", "icon": "coins", "category": "Gelir"}}`)

	rules, err := LoadRulesFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/gelir", rules["Ciro"].Route)

	_, err = LoadRulesFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	writeRules(t, path, `{not json`)
	_, err = LoadRulesFile(path)
	assert.Error(t, err)
}

func TestWatchRulesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	writeRules(t, path, `{"Ciro": {"route": "/gelir"}}`)

	rules := NewRules()
	watcher, err := WatchRulesFile(path, rules, testLogger())
	require.NoError(t, err)
	defer watcher.Close()

	assert.Equal(t, "/gelir", rules.Classify(Report{Name: "Ciro"}).Route)

	writeRules(t, path, `{"Ciro": {"route": "/ciro-v2"}}`)

	// reload is asynchronous
	deadline := time.After(3 * time.Second)
	for rules.Classify(Report{Name: "Ciro"}).Route != "/ciro-v2" {
		select {
		case <-deadline:
			t.Fatal("rules were not reloaded after file change")
		case <-time.After(20 * time.Millisecond):
		}
	}

	// a broken rewrite keeps the previous table
	writeRules(t, path, `{broken`)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "/ciro-v2", rules.Classify(Report{Name: "Ciro"}).Route)
}
