package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/injector/internal/config"
	"github.com/conneroisu/injector/internal/errors"
	"github.com/conneroisu/injector/internal/injector"
	"github.com/conneroisu/injector/internal/version"
)

const indexTemplate = `<html>
<head>
  <!-- injector:css -->
  <!-- endinjector -->
</head>
<body>
  <!-- injector:js -->
  <!-- endinjector -->
</body>
</html>
`

const projectConfig = `
options:
  sort: asc
targets:
  - name: app
    template: src/index.html
    src: ["src/**/*.js", "src/**/*.css"]
    dest: dist/index.html
  - name: admin
    template: src/index.html
    src: ["src/admin/*.js"]
    dest: dist/admin.html
`

// resetFlags restores every flag to its default so commands can be executed
// repeatedly in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func executeCommandContext(ctx context.Context, args ...string) (string, string, error) {
	viper.Reset()
	bindLogFlags()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)

	return stdout.String(), stderr.String(), err
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeCommandContext(context.Background(), args...)
}

// newProject creates a project in a temporary directory and makes it the
// working directory.
func newProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	t.Chdir(dir)

	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.FromSlash(path))
	require.NoError(t, err)

	return string(data)
}

func TestRunAdHocTarget(t *testing.T) {
	newProject(t, map[string]string{
		"index.html":     indexTemplate,
		"src/app.js":     "",
		"src/vendor.js":  "",
		"src/site.css":   "",
		"src/readme.txt": "",
	})

	stdout, _, err := executeCommand(t, "run",
		"-s", "src/*.js", "-s", "src/*.css", "-s", "!src/vendor.js",
		"-d", "index.html", "--ignore-path", "src")
	require.NoError(t, err)

	assert.Equal(t, "cli: wrote index.html (2 tags, 2 files)\n", stdout)

	content := readFile(t, "index.html")
	assert.Contains(t, content, "  <!-- injector:css -->\n  <link rel=\"stylesheet\" href=\"/site.css\">\n  <!-- endinjector -->")
	assert.Contains(t, content, "  <!-- injector:js -->\n  <script src=\"/app.js\"></script>\n  <!-- endinjector -->")
	assert.NotContains(t, content, "vendor.js")

	stdout, _, err = executeCommand(t, "run", "-s", "src/*.js", "-s", "src/*.css", "-s", "!src/vendor.js",
		"-d", "index.html", "--ignore-path", "src")
	require.NoError(t, err)
	assert.Equal(t, "cli: index.html unchanged\n", stdout)
}

func TestRunConfiguredTargets(t *testing.T) {
	newProject(t, map[string]string{
		".injector.yml":     projectConfig,
		"src/index.html":    indexTemplate,
		"src/b.js":          "",
		"src/a.js":          "",
		"src/site.css":      "",
		"src/admin/tool.js": "",
	})

	stdout, _, err := executeCommand(t, "run", "app")
	require.NoError(t, err)
	assert.Equal(t, "app: wrote dist/index.html (2 tags, 4 files)\n", stdout)
	assert.NoFileExists(t, "dist/admin.html")

	content := readFile(t, "dist/index.html")
	assert.Less(t, strings.Index(content, "/src/a.js"), strings.Index(content, "/src/b.js"))
	assert.Less(t, strings.Index(content, "/src/admin/tool.js"), strings.Index(content, "/src/b.js"))

	// The template still differs from the output, so app is written again.
	stdout, _, err = executeCommand(t, "run")
	require.NoError(t, err)
	assert.Equal(t, "app: wrote dist/index.html (2 tags, 4 files)\n"+
		"admin: wrote dist/admin.html (1 tags, 1 files)\n", stdout)
}

func TestRunDryRun(t *testing.T) {
	newProject(t, map[string]string{
		"index.html": indexTemplate,
		"app.js":     "",
	})

	stdout, _, err := executeCommand(t, "run", "--dry-run", "-s", "app.js", "-d", "index.html")
	require.NoError(t, err)

	assert.Equal(t, "cli: would write index.html (1 tags, 1 files)\n", stdout)
	assert.Equal(t, indexTemplate, readFile(t, "index.html"))
}

func TestRunEnvironmentOverridesOptions(t *testing.T) {
	newProject(t, map[string]string{
		"index.html": indexTemplate,
		"app.js":     "",
		"app.min.js": "",
	})
	t.Setenv("INJECTOR_OPTIONS_MIN", "true")

	_, _, err := executeCommand(t, "run", "-s", "app.js", "-d", "index.html")
	require.NoError(t, err)
	assert.Contains(t, readFile(t, "index.html"), `<script src="/app.min.js"></script>`)

	_, _, err = executeCommand(t, "run", "-s", "app.js", "-d", "index.html", "--min=false")
	require.NoError(t, err)
	assert.Contains(t, readFile(t, "index.html"), `<script src="/app.js"></script>`)
}

func TestRunErrors(t *testing.T) {
	t.Run("unknown target", func(t *testing.T) {
		newProject(t, map[string]string{".injector.yml": projectConfig})

		_, stderr, err := executeCommand(t, "run", "site")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeTargetNotFound))
		assert.Contains(t, stderr, "injector list")
	})

	t.Run("missing template", func(t *testing.T) {
		newProject(t, map[string]string{".injector.yml": projectConfig})

		_, stderr, err := executeCommand(t, "run")
		require.Error(t, err)
		assert.Equal(t, "2 target(s) failed", err.Error())
		assert.Contains(t, stderr, "TEMPLATE_NOT_FOUND")
		assert.Contains(t, stderr, "Create the template")
	})

	t.Run("no targets", func(t *testing.T) {
		newProject(t, nil)

		_, _, err := executeCommand(t, "run")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	})

	t.Run("names with ad-hoc flags", func(t *testing.T) {
		newProject(t, map[string]string{".injector.yml": projectConfig})

		_, _, err := executeCommand(t, "run", "app", "-d", "index.html")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be combined")
	})

	t.Run("option flags without an ad-hoc target", func(t *testing.T) {
		newProject(t, map[string]string{
			".injector.yml": "targets:\n  - name: app\n    src: [\"js/*.js\"]\n    dest: index.html\n",
			"index.html":    indexTemplate,
		})

		_, _, err := executeCommand(t, "run", "app", "--sort", "asc", "--min")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--min, --sort only apply with --template, --dest or --src")
		assert.Equal(t, indexTemplate, readFile(t, "index.html"))
	})

	t.Run("invalid sort flag", func(t *testing.T) {
		newProject(t, nil)

		_, _, err := executeCommand(t, "run", "-d", "index.html", "--sort", "random")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid sort "random"`)
	})

	t.Run("missing config file", func(t *testing.T) {
		newProject(t, nil)

		_, _, err := executeCommand(t, "run", "--config", "absent.yml")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	})
}

func TestListJSON(t *testing.T) {
	newProject(t, map[string]string{
		".injector.yml":  projectConfig,
		"src/index.html": indexTemplate,
		"src/a.js":       "",
		"src/site.css":   "",
	})

	stdout, _, err := executeCommand(t, "list", "app", "-o", "json")
	require.NoError(t, err)

	var results []injector.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "app", results[0].Target)
	assert.True(t, results[0].DryRun)
	require.Len(t, results[0].Tags, 2)
	assert.Equal(t, "js", results[0].Tags[0].Key)
	assert.Equal(t, 1, results[0].Tags[0].Regions)
	assert.Equal(t, "/src/a.js", results[0].Tags[0].Entries[0].NormalizedPath)
	assert.NoFileExists(t, "dist/index.html")
}

func TestListTable(t *testing.T) {
	newProject(t, map[string]string{
		"index.html": indexTemplate,
		"a.js":       "",
		"b.css":      "",
	})

	stdout, _, err := executeCommand(t, "list", "-s", "*.js", "-s", "*.css", "-d", "index.html")
	require.NoError(t, err)

	assert.Contains(t, stdout, "TARGET")
	assert.Contains(t, stdout, `<script src="/a.js"></script>`)
	assert.Contains(t, stdout, "Total: 1 targets, 2 files")
	assert.Equal(t, indexTemplate, readFile(t, "index.html"))
}

func TestListRejectsUnknownFormat(t *testing.T) {
	newProject(t, nil)

	_, _, err := executeCommand(t, "list", "-o", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table, json, yaml")
}

func TestCheck(t *testing.T) {
	t.Run("clean template", func(t *testing.T) {
		newProject(t, map[string]string{
			".injector.yml": "targets:\n  - name: app\n    src: [a.js, b.css]\n    dest: index.html\n",
			"index.html":    indexTemplate,
			"a.js":          "",
			"b.css":         "",
		})

		stdout, _, err := executeCommand(t, "check")
		require.NoError(t, err)
		assert.Contains(t, stdout, "ok")
		assert.Contains(t, stdout, "2 regions")
		assert.Equal(t, indexTemplate, readFile(t, "index.html"))
	})

	t.Run("marker problems", func(t *testing.T) {
		newProject(t, map[string]string{
			".injector.yml": `
targets:
  - name: app
    src: ["*.js", "*.css"]
    dest: index.html
`,
			"index.html": "<body>\n<!-- injector:js -->\n<!-- endinjector -->\n<!-- injector:html -->\n</body>\n",
			"a.js":       "",
			"b.css":      "",
		})

		stdout, _, err := executeCommand(t, "check", "-o", "json")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))

		var reports []map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
		require.Len(t, reports, 1)
		assert.Equal(t, "app", reports[0]["target"])
		assert.Equal(t, "index.html", reports[0]["template"])

		problems, ok := reports[0]["problems"].([]any)
		require.True(t, ok)
		kinds := make([]string, 0, len(problems))
		for _, p := range problems {
			kinds = append(kinds, p.(map[string]any)["kind"].(string))
		}
		assert.ElementsMatch(t, []string{"unterminated", "missing-region"}, kinds)
	})

	t.Run("warnings fail only when strict", func(t *testing.T) {
		newProject(t, map[string]string{
			".injector.yml": "targets:\n  - name: app\n    src: [a.js]\n    dest: index.html\n",
			"index.html":    indexTemplate,
			"a.js":          "",
		})

		stdout, _, err := executeCommand(t, "check")
		require.NoError(t, err)
		assert.Contains(t, stdout, "unused-region")

		_, _, err = executeCommand(t, "check", "--strict")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
	})
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "version", "--format", "json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, version.Get().Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)

	stdout, _, err = executeCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Get().Short()+"\n", stdout)

	_, _, err = executeCommand(t, "version", "--format", "xml")
	require.Error(t, err)
}

func TestWatchReinjectsOnChange(t *testing.T) {
	newProject(t, map[string]string{
		"index.html": indexTemplate,
		"js/a.js":    "",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := executeCommandContext(ctx, "watch", "-s", "js/**/*.js", "-d", "index.html", "--debounce", "20ms")
		done <- err
	}()

	assert.Eventually(t, func() bool {
		data, _ := os.ReadFile("index.html")
		return strings.Contains(string(data), "/js/a.js")
	}, 5*time.Second, 20*time.Millisecond)

	// Give the watcher time to register before changing files.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join("js", "b.js"), nil, 0o644))

	assert.Eventually(t, func() bool {
		data, _ := os.ReadFile("index.html")
		return strings.Contains(string(data), "/js/b.js")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchFailsWhenLiveReloadCannotListen(t *testing.T) {
	newProject(t, map[string]string{
		"index.html": indexTemplate,
		"js/a.js":    "",
	})

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err = executeCommandContext(ctx, "watch", "-s", "js/*.js", "-d", "index.html",
		"--livereload="+busy.Addr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start live reload")
	assert.NoError(t, ctx.Err(), "watch must fail before waiting for changes")
}

func TestWatchSet(t *testing.T) {
	targets := []injector.Target{
		{Name: "app", Dest: "dist/index.html", Sources: []string{"src/a.js", "bower.json"},
			Options: injector.Options{Template: "src/index.html"}},
		{Name: "docs", Dest: "docs/index.html", Sources: []string{"src/a.js"}},
	}
	selected := []config.TargetConfig{
		{Name: "app", Src: []string{"src/**/*.js", "bower.json"}},
		{Name: "docs", Src: []string{"src/a.js"}},
	}

	files, patterns, destinations := watchSet(targets, selected)

	assert.Equal(t, []string{"bower.json", "docs/index.html", "src/a.js", "src/index.html"}, files)
	assert.Equal(t, []string{"src/**/*.js", "bower.json", "src/a.js"}, patterns)

	distAbs, _ := filepath.Abs("dist/index.html")
	docsAbs, _ := filepath.Abs("docs/index.html")
	assert.True(t, destinations[distAbs])
	assert.False(t, destinations[docsAbs], "a destination that is its own template stays watched")
}

func TestValidateChoice(t *testing.T) {
	assert.NoError(t, ValidateChoice("format", "JSON", outputFormats))
	err := ValidateChoice("format", "xml", outputFormats)
	require.Error(t, err)
	assert.Equal(t, `invalid format "xml", must be one of: table, json, yaml`, err.Error())
}

func TestAddFlagValidation(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var value string
	flags.StringVar(&value, "sort", "", "")
	AddFlagValidation(flags, "sort", func(v string) error {
		return ValidateChoice("sort", v, injector.SortNames)
	})
	AddFlagValidation(flags, "missing", nil)

	require.NoError(t, flags.Set("sort", "natural"))
	assert.Equal(t, "natural", value)

	require.Error(t, flags.Set("sort", "shuffle"))
	assert.Equal(t, "natural", value)
}
