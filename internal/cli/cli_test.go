package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/store"
	"github.com/vovakirdan/skyoffice-server/internal/store/sqlite"
)

type cliEnv struct {
	dir    string
	config string
	db     string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	return &cliEnv{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		db:     filepath.Join(dir, "skyoffice.db"),
	}
}

// run executes the root command and returns what it printed.
func (e *cliEnv) run(args ...string) (string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--config", e.config, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) openStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	st, err := sqlite.New(e.db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "user", "events", "smoke"})
}

func TestUserCreate(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run("user", "create", "--db", e.db,
		"--username", "alice", "--password", "secret1", "--avatar", "lucy", "--flow-type", "NPC")
	require.NoError(t, err)
	assert.Contains(t, out, "created user alice")

	_, err = os.Stat(e.config)
	require.NoError(t, err, "default config should be written")

	u, err := e.openStore(t).GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "lucy", u.Avatar)
	assert.Equal(t, "NPC", u.FlowType)

	_, err = e.run("user", "create", "--db", e.db, "--username", "alice", "--password", "secret1")
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestUserCreateValidates(t *testing.T) {
	e := newCLIEnv(t)

	_, err := e.run("user", "create", "--db", e.db, "--username", "bob", "--password", "abc")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	_, err = e.run("user", "create", "--db", e.db, "--username", "bob", "--password", "secret1", "--avatar", "bob")
	assert.ErrorIs(t, err, auth.ErrInvalidAvatar)

	_, err = e.run("user", "create", "--db", e.db, "--username", "bob", "--password", "secret1", "--flow-type", "EMAIL")
	assert.ErrorIs(t, err, auth.ErrInvalidFlowType)

	_, err = e.run("user", "create", "--db", e.db, "--username", "bob")
	assert.Error(t, err, "password flag is required")
}

func TestUserImport(t *testing.T) {
	e := newCLIEnv(t)
	csvPath := filepath.Join(e.dir, "users.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(strings.Join([]string{
		"username,password,avatar,flow_type,email",
		"carol,secret1,ash,NPC,carol@example.com",
		"dave,secret2,,,",
		"eve,123,,,",
	}, "\n")), 0o600))

	out, err := e.run("user", "import", "--db", e.db, csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 rows failed")
	assert.Contains(t, out, "row 4 (eve)")
	assert.Contains(t, out, "imported 2 of 3 users")

	st := e.openStore(t)
	carol, err := st.GetUserByUsername(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "ash", carol.Avatar)
	assert.Equal(t, "NPC", carol.FlowType)
	assert.Equal(t, "carol@example.com", carol.Email)

	dave, err := st.GetUserByUsername(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, "adam", dave.Avatar)
	assert.Equal(t, "SYSTEM", dave.FlowType)

	_, err = st.GetUserByUsername(context.Background(), "eve")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReadRegistrationsMissingColumn(t *testing.T) {
	_, err := readRegistrations(strings.NewReader("username,email\nann,a@b.c\n"))
	assert.ErrorIs(t, err, errMissingColumn)

	regs, err := readRegistrations(strings.NewReader("Password , USERNAME\nsecret1,ann\n"))
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "ann", regs[0].Username)
	assert.Equal(t, "secret1", regs[0].Password)
}

func TestEvents(t *testing.T) {
	e := newCLIEnv(t)
	st := e.openStore(t)
	now := time.Now()
	require.NoError(t, st.InsertEvents(context.Background(), []*store.Event{
		{UserID: 1, SessionID: "s1", Type: "LOGIN", Category: "AUTH", Timestamp: now.Add(-2 * time.Second)},
		{UserID: 1, SessionID: "s1", Type: "NPC_MESSAGE_SENT", Category: "NPC", Timestamp: now.Add(-time.Second)},
		{UserID: 1, SessionID: "s1", Type: "NPC_MESSAGE_SENT", Category: "NPC", Metadata: `{"npcId":"prof"}`, Timestamp: now},
	}))
	require.NoError(t, st.InsertInteraction(context.Background(), &store.Interaction{
		UserID: 1, SessionID: "s1", TargetType: "npc", TargetID: "prof",
		StartTime: now.Add(-time.Minute), EndTime: now,
	}))

	out, err := e.run("events", "--db", e.db, "--limit", "2")
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[1], "NPC_MESSAGE_SENT")
	assert.Contains(t, lines[1], "2")
	assert.Regexp(t, `interactions\s+1`, out)
	assert.Contains(t, out, `{"npcId":"prof"}`)
}
