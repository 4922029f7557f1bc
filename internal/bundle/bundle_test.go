package bundle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkoopman/gridbak/internal/api"
	"github.com/mkoopman/gridbak/internal/runner"
	"github.com/mkoopman/gridbak/types"
)

// fakeRunner simulates the compose boundary: `compose cp` out of a
// container materializes files on the shared filesystem, everything else
// just gets recorded.
type fakeRunner struct {
	fs       afero.Fs
	commands []string
	manifest string // JSON content the "export command" produces
}

func (r *fakeRunner) Run(_ context.Context, cmd runner.Command) (string, error) {
	s := cmd.String()
	r.commands = append(r.commands, s)

	args := cmd.Args
	if len(args) >= 4 && args[1] == "cp" && strings.Contains(args[2], ":") {
		// copy out of the container: create the destination file
		src := args[2][strings.Index(args[2], ":")+1:]
		dest := args[3]
		content := "binary-assets"
		if strings.HasSuffix(src, ".json") {
			content = r.manifest
		}
		if err := afero.WriteFile(r.fs, dest, []byte(content), 0o644); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (r *fakeRunner) ranContaining(sub string) bool {
	for _, c := range r.commands {
		if strings.Contains(c, sub) {
			return true
		}
	}
	return false
}

func newAPIStub(t *testing.T) (*api.Client, *[]string) {
	t.Helper()
	var createdGroups []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/user/token-auth/":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "token"})
		case r.URL.Path == "/groups/" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]api.Group{{ID: 3, Name: "Sales Team"}})
		case r.URL.Path == "/groups/" && r.Method == http.MethodPost:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			createdGroups = append(createdGroups, body["name"])
			_ = json.NewEncoder(w).Encode(api.Group{ID: 11, Name: body["name"]})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, api.Credentials{Email: "e", Password: "p"}, 5*time.Second, zerolog.Nop()), &createdGroups
}

func newTestManager(t *testing.T, fs afero.Fs, r runner.Runner) (*Manager, *[]string) {
	t.Helper()
	client, created := newAPIStub(t)
	cfg := &types.AppConfig{
		Project: types.ProjectConfig{ArtifactDir: "backups", RebuildFlagFile: ".rebuild"},
		Compose: types.ComposeConfig{
			DatastoreService: "db",
			BackendService:   "backend",
			ManageCommand:    []string{"python", "manage.py"},
		},
	}
	m := NewManager(fs, r, client, cfg, zerolog.Nop())
	m.SetClock(func() time.Time { return time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC) })
	return m, created
}

func TestExportApplication(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs, manifest: `{"tables":[{"name":"Contacts"}]}`}
	m, _ := newTestManager(t, fs, r)

	out, err := m.ExportApplication(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("backups", "application_42_2024-03-10.zip"), out)

	assert.True(t, r.ranContaining("export_single_application 42"))

	// The outer archive holds manifest + assets, no marker.
	dir, err := afero.TempDir(fs, "", "check-")
	require.NoError(t, err)
	require.NoError(t, unpackArchive(fs, out, dir))
	for name, want := range map[string]bool{
		"application_42.json": true,
		"application_42.zip":  true,
		"application_42.name": false,
	} {
		exists, _ := afero.Exists(fs, path.Join(dir, name))
		assert.Equal(t, want, exists, name)
	}
}

func TestExportGroup_WritesNameMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs, manifest: `[{"id":1}]`}
	m, _ := newTestManager(t, fs, r)

	out, err := m.ExportGroup(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, r.ranContaining("export_group_applications 3"))

	dir, err := afero.TempDir(fs, "", "check-")
	require.NoError(t, err)
	require.NoError(t, unpackArchive(fs, out, dir))

	marker, err := afero.ReadFile(fs, path.Join(dir, "group_3.name"))
	require.NoError(t, err)
	assert.Equal(t, "Sales Team", strings.TrimSpace(string(marker)))
}

func TestExportCleansScratch(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs, manifest: `{}`}
	m, _ := newTestManager(t, fs, r)

	_, err := m.ExportApplication(context.Background(), 42)
	require.NoError(t, err)

	// No export- scratch dirs left behind.
	infos, err := afero.ReadDir(fs, afero.GetTempDir(fs, ""))
	require.NoError(t, err)
	for _, info := range infos {
		assert.False(t, strings.HasPrefix(info.Name(), "export-"), "leftover scratch dir %s", info.Name())
	}

	// The in-container scratch dir was removed too.
	assert.True(t, r.ranContaining("rm -rf /tmp/export-"))
}

// makeBundle builds an outer bundle archive directly on the filesystem.
func makeBundle(t *testing.T, fs afero.Fs, outPath, base string, withMarker bool, markerContent string) {
	t.Helper()
	dir, err := afero.TempDir(fs, "", "mk-")
	require.NoError(t, err)

	files := map[string]string{}
	for ext, content := range map[string]string{
		manifestExt: `{"tables":[]}`,
		assetsExt:   "assets",
	} {
		p := filepath.Join(dir, base+ext)
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
		files[base+ext] = p
	}
	if withMarker {
		p := filepath.Join(dir, base+markerExt)
		require.NoError(t, afero.WriteFile(fs, p, []byte(markerContent), 0o644))
		files[base+markerExt] = p
	}
	require.NoError(t, packArchive(fs, outPath, files))
}

func TestImportGroup_CreatesGroupFromMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs}
	m, created := newTestManager(t, fs, r)

	makeBundle(t, fs, "group_3.zip", "group_3", true, "Sales Team\n")

	groupID, err := m.ImportGroup(context.Background(), "group_3.zip", 0)
	require.NoError(t, err)
	assert.Equal(t, 11, groupID)
	assert.Equal(t, []string{"Sales Team"}, *created)
	assert.True(t, r.ranContaining("import_group_applications 11"))
}

func TestImportGroup_DefaultNameWithoutMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs}
	m, created := newTestManager(t, fs, r)

	makeBundle(t, fs, "group_3.zip", "group_3", false, "")

	_, err := m.ImportGroup(context.Background(), "group_3.zip", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultGroupName}, *created)
}

func TestImportGroup_NegativeIDCreatesGroup(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs}
	m, created := newTestManager(t, fs, r)

	makeBundle(t, fs, "group_3.zip", "group_3", true, "Sales Team\n")

	// A non-positive target never reaches the import command as-is.
	groupID, err := m.ImportGroup(context.Background(), "group_3.zip", -1)
	require.NoError(t, err)
	assert.Equal(t, 11, groupID)
	assert.Equal(t, []string{"Sales Team"}, *created)
	assert.True(t, r.ranContaining("import_group_applications 11"))
	assert.False(t, r.ranContaining("import_group_applications -1"))
}

func TestImportGroup_ExistingGroupSkipsCreation(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs}
	m, created := newTestManager(t, fs, r)

	makeBundle(t, fs, "group_3.zip", "group_3", true, "Sales Team")

	groupID, err := m.ImportGroup(context.Background(), "group_3.zip", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, groupID)
	assert.Empty(t, *created)
	assert.True(t, r.ranContaining("import_group_applications 7"))
}

func TestImportApplication_RequiresGroup(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs}
	m, _ := newTestManager(t, fs, r)

	err := m.ImportApplication(context.Background(), "application_42.zip", 0)
	require.ErrorIs(t, err, ErrGroupRequired)
	assert.Empty(t, r.commands, "usage error must precede any side effect")
}

func TestImport_CorruptBundle(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs}
	m, _ := newTestManager(t, fs, r)

	// Archive without a manifest.
	dir, err := afero.TempDir(fs, "", "mk-")
	require.NoError(t, err)
	p := filepath.Join(dir, "application_42.zip")
	require.NoError(t, afero.WriteFile(fs, p, []byte("assets"), 0o644))
	require.NoError(t, packArchive(fs, "nomanifest.zip", map[string]string{"application_42.zip": p}))

	err = m.ImportApplication(context.Background(), "nomanifest.zip", 7)
	require.ErrorIs(t, err, ErrCorruptBundle)
	assert.Empty(t, r.commands, "a corrupt bundle must abort before remote mutation")

	// Archive with a manifest but no matching asset archive.
	p2 := filepath.Join(dir, "application_42.json")
	require.NoError(t, afero.WriteFile(fs, p2, []byte("{}"), 0o644))
	require.NoError(t, packArchive(fs, "noassets.zip", map[string]string{"application_42.json": p2}))

	err = m.ImportApplication(context.Background(), "noassets.zip", 7)
	require.ErrorIs(t, err, ErrCorruptBundle)
}

func TestExportImportRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	manifest := `{"tables":[{"name":"Contacts","rows":3}]}`
	r := &fakeRunner{fs: fs, manifest: manifest}
	m, created := newTestManager(t, fs, r)

	out, err := m.ExportApplication(context.Background(), 42)
	require.NoError(t, err)

	// Importing into a given workspace needs no marker and creates no group.
	require.NoError(t, m.ImportApplication(context.Background(), out, 7))
	assert.Empty(t, *created)
	assert.True(t, r.ranContaining("import_group_applications 7"))

	// The manifest travels through the bundle unchanged.
	dir, err := afero.TempDir(fs, "", "check-")
	require.NoError(t, err)
	require.NoError(t, unpackArchive(fs, out, dir))
	got, err := afero.ReadFile(fs, path.Join(dir, "application_42.json"))
	require.NoError(t, err)
	assert.JSONEq(t, manifest, string(got))
}

func TestIsTransientName(t *testing.T) {
	for name, want := range map[string]bool{
		"group_3_2024-03-10.zip":        true,
		"application_42_2024-03-10.zip": true,
		"application_42.json":           true,
		"group_3.name":                  true,
		"backup_2024-03-10.dump":        false,
		"random.zip":                    false,
	} {
		assert.Equal(t, want, IsTransientName(name), name)
	}
}
