package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/skyoffice-server/internal/points"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.FileExists(t, path)

	assert.Equal(t, ":2567", cfg.Server.Addr)
	assert.Equal(t, 50*time.Millisecond, cfg.Room.PatchRate)
	assert.Equal(t, "gpt-3.5-turbo", cfg.AI.Model)
	require.Len(t, cfg.NPCs, 1)
	assert.Equal(t, "guide", cfg.NPCs[0].ID)

	// the written file loads back to the same values
	again, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
room:
  patch_rate: 100ms
  rate_limit: 5
npcs:
  - id: librarian
    name: Mr. Book
    chat: true
`), 0o600))

	t.Setenv("SKYOFFICE_DATABASE_PATH", "/tmp/other.db")
	t.Setenv("SKYOFFICE_AUTH_REQUIRED", "true")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 100*time.Millisecond, cfg.Room.PatchRate)
	assert.Equal(t, 5, cfg.Room.RateLimit)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.True(t, cfg.Auth.Required)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	layout := cfg.Layout()
	require.Len(t, layout.NPCs, 1)
	assert.Equal(t, "Mr. Book", layout.NPCs[0].Name)
	assert.Equal(t, 5, layout.Computers)
}

func TestValidateRejectsDuplicateNPCs(t *testing.T) {
	cfg := Default()
	cfg.NPCs = append(cfg.NPCs, cfg.NPCs[0])
	require.Error(t, cfg.Validate())
}

func TestPointRules(t *testing.T) {
	cfg := Default()
	cfg.Points.ConversationCooldown = 2 * time.Minute
	cfg.Points.MeaningfulQuestion = 25

	rules := cfg.PointRules()
	assert.Equal(t, int64(25), rules[points.MeaningfulQuestion].Points)
	assert.Zero(t, rules[points.MeaningfulQuestion].Cooldown)
	assert.Equal(t, 2*time.Minute, rules[points.NPCConversationStart].Cooldown)
	// the package defaults are untouched
	assert.Equal(t, int64(10), points.DefaultRules[points.MeaningfulQuestion].Points)
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Server: ServerConfig{Addr: ":1"}, Log: LogConfig{Level: "debug"}})
	assert.Equal(t, ":1", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "skyoffice.db", cfg.Database.Path)
}
