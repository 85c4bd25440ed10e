package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/doughall/jobconsole/internal/client"
	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

// run executes the root command with args and returns what it wrote.
func run(t *testing.T, a *app, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	if a.configPath == "" {
		a.configPath = filepath.Join(t.TempDir(), "missing.yaml")
	}

	cmd := newRootCmd(a)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", a.configPath}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestBuildCmd(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"build", "--preset", "weekdays", "--hour", "14", "--minute", "30"}, "30 14 * * 1-5\n"},
		{[]string{"build", "--preset", "every_n_hours", "--interval", "6"}, "0 */6 * * *\n"},
		{[]string{"build", "--preset", "weekly", "--dow", "5"}, "0 9 * * 5\n"},
		{[]string{"build"}, "0 9 * * *\n"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args[1:], " "), func(t *testing.T) {
			out, _, err := run(t, &app{}, tt.args...)
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}
			if out != tt.want {
				t.Errorf("got %q, want %q", out, tt.want)
			}
		})
	}

	t.Run("custom rejected", func(t *testing.T) {
		if _, _, err := run(t, &app{}, "build", "--preset", "custom"); err == nil {
			t.Error("expected error for custom preset")
		}
	})

	t.Run("unknown preset", func(t *testing.T) {
		if _, _, err := run(t, &app{}, "build", "--preset", "hourly"); err == nil {
			t.Error("expected error for unknown preset")
		}
	})
}

func TestParseCmd(t *testing.T) {
	out, _, err := run(t, &app{}, "parse", "15 7 * * 3")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"preset: weekly", `hour: "7"`, `minute: "15"`, `day_of_week: "3"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPreviewCmd(t *testing.T) {
	t.Run("fixed start", func(t *testing.T) {
		out, _, err := run(t, &app{}, "preview", "0 9 * * *", "--from", "2026-01-01T00:00:00Z", "--tz", "UTC", "-n", "3")
		if err != nil {
			t.Fatal(err)
		}
		want := "2026-01-01T09:00:00Z  Thu\n2026-01-02T09:00:00Z  Fri\n2026-01-03T09:00:00Z  Sat\n"
		if out != want {
			t.Errorf("got:\n%s\nwant:\n%s", out, want)
		}
	})

	t.Run("never fires", func(t *testing.T) {
		_, stderr, err := run(t, &app{}, "preview", "0 0 30 2 *", "--from", "2026-01-01T00:00:00Z")
		if exitCode(err) != 1 {
			t.Errorf("exit code = %d, want 1 (err %v)", exitCode(err), err)
		}
		if !strings.Contains(stderr, "no upcoming fire times") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("bad from", func(t *testing.T) {
		if _, _, err := run(t, &app{}, "preview", "* * * * *", "--from", "yesterday"); err == nil {
			t.Error("expected error for invalid --from")
		}
	})

	t.Run("bad tz", func(t *testing.T) {
		if _, _, err := run(t, &app{}, "preview", "* * * * *", "--tz", "Mars/Olympus"); err == nil {
			t.Error("expected error for invalid --tz")
		}
	})
}

func TestValidateCmd(t *testing.T) {
	out, _, err := run(t, &app{}, "validate", "*/15 * * * *")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "valid: Every 15 minutes" {
		t.Errorf("out = %q", out)
	}

	_, stderr, err := run(t, &app{}, "validate", "61 * * * *")
	if exitCode(err) != 1 {
		t.Errorf("exit code = %d, want 1", exitCode(err))
	}
	if stderr == "" {
		t.Error("expected the parse error on stderr")
	}
}

func TestDescribeCmd(t *testing.T) {
	tests := map[string]string{
		"0 2 * * *":   "Daily at 02:00",
		"0 0 * * *":   "Daily at midnight",
		"0 */4 * * *": "Every 4 hours",
		"0 9 * * 1-5": "0 9 * * 1-5",
	}
	for in, want := range tests {
		out, _, err := run(t, &app{}, "describe", in)
		if err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(out) != want {
			t.Errorf("describe %q = %q, want %q", in, strings.TrimSpace(out), want)
		}
	}
}

func TestPresetsCmd(t *testing.T) {
	out, _, err := run(t, &app{}, "presets")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"every_n_hours", "Weekdays (Mon-Fri)", "0 9 * * 1-5", "--interval", "0=Sunday"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

// fakeAPI is an in-memory jobs API for one project.
type fakeAPI struct {
	mu      sync.Mutex
	jobs    map[string]client.Job
	patches []client.ScheduleUpdate
}

func newFakeAPI(jobs ...client.Job) *fakeAPI {
	f := &fakeAPI{jobs: make(map[string]client.Job)}
	for _, j := range jobs {
		f.jobs[j.ID] = j
	}
	return f
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const prefix = "/api/projects/p1/jobs"
	if r.Header.Get("Authorization") != "Bearer key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")

	w.Header().Set("Content-Type", "application/json")
	switch {
	case id == "" && r.Method == http.MethodGet:
		list := make([]client.Job, 0, len(f.jobs))
		for _, j := range f.jobs {
			list = append(list, j)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jobs": list})

	case r.Method == http.MethodGet:
		j, ok := f.jobs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(j)

	case r.Method == http.MethodPatch:
		j, ok := f.jobs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var u client.ScheduleUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"bad body"}`)
			return
		}
		f.patches = append(f.patches, u)
		j.CronExpression = u.CronExpression
		j.Enabled = u.Enabled
		f.jobs[id] = j
		_ = json.NewEncoder(w).Encode(j)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeAPI) job(id string) client.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id]
}

// writeConfig writes a config pointing at serverURL with its data dir under
// the test's temp dir.
func writeConfig(t *testing.T, serverURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`server_url: %s
api_key: key
project_id: p1
data_dir: %s
log_level: error
`, serverURL, filepath.Join(dir, "data"))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestJobsCommands(t *testing.T) {
	api := newFakeAPI(
		client.Job{ID: "job-1", ProjectID: "p1", Name: "Nightly export", CronExpression: "0 2 * * *", Enabled: true},
		client.Job{ID: "job-2", ProjectID: "p1", Name: "Cleanup", CronExpression: "*/15 * * * *", Enabled: false},
	)
	srv := httptest.NewServer(api)
	defer srv.Close()

	cfgPath := writeConfig(t, srv.URL)
	online := func() *app { return &app{configPath: cfgPath, httpClient: srv.Client()} }
	offlineApp := func() *app {
		return &app{configPath: cfgPath, httpClient: &http.Client{Transport: failingTransport{}}}
	}

	t.Run("list", func(t *testing.T) {
		out, _, err := run(t, online(), "jobs", "list")
		if err != nil {
			t.Fatalf("jobs list failed: %v", err)
		}
		for _, want := range []string{"Nightly export", "Daily at 02:00", "Cleanup", "Every 15 minutes"} {
			if !strings.Contains(out, want) {
				t.Errorf("list output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("list cached", func(t *testing.T) {
		out, _, err := run(t, offlineApp(), "jobs", "list", "--cached")
		if err != nil {
			t.Fatalf("cached list failed: %v", err)
		}
		if !strings.Contains(out, "Nightly export") {
			t.Errorf("cached list missing job:\n%s", out)
		}
	})

	t.Run("show", func(t *testing.T) {
		out, _, err := run(t, online(), "jobs", "show", "job-1", "-n", "2")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "Preset:    Daily") || !strings.Contains(out, "Next runs:") {
			t.Errorf("unexpected show output:\n%s", out)
		}
	})

	t.Run("show offline falls back to cache", func(t *testing.T) {
		out, stderr, err := run(t, offlineApp(), "jobs", "show", "job-1")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(stderr, "cached") || !strings.Contains(out, "Nightly export") {
			t.Errorf("stdout:\n%s\nstderr:\n%s", out, stderr)
		}
	})

	t.Run("schedule", func(t *testing.T) {
		out, _, err := run(t, online(), "jobs", "schedule", "job-1", "--hour", "6", "--minute", "30")
		if err != nil {
			t.Fatalf("schedule failed: %v", err)
		}
		if !strings.Contains(out, "schedule updated") {
			t.Errorf("out = %q", out)
		}
		if got := api.job("job-1").CronExpression; got != "30 6 * * *" {
			t.Errorf("server cron = %q, want 30 6 * * *", got)
		}

		cached, _, _ := run(t, offlineApp(), "jobs", "list", "--cached")
		if !strings.Contains(cached, "Daily at 06:30") {
			t.Errorf("cache not updated:\n%s", cached)
		}
	})

	t.Run("schedule unchanged", func(t *testing.T) {
		out, _, err := run(t, online(), "jobs", "schedule", "job-1", "--hour", "6")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "no changes") {
			t.Errorf("out = %q", out)
		}
	})

	t.Run("schedule invalid", func(t *testing.T) {
		_, _, err := run(t, online(), "jobs", "schedule", "job-1", "--hour", "25")
		if exitCode(err) != 1 {
			t.Errorf("exit code = %d, want 1", exitCode(err))
		}
	})

	t.Run("schedule unknown job", func(t *testing.T) {
		_, _, err := run(t, online(), "jobs", "schedule", "nope", "--hour", "5")
		if !errors.Is(err, client.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("draft", func(t *testing.T) {
		api.mu.Lock()
		before := len(api.patches)
		api.mu.Unlock()

		out, _, err := run(t, online(), "jobs", "schedule", "job-2", "--cron", "0 */2 * * *", "--draft")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "draft saved") {
			t.Errorf("out = %q", out)
		}
		api.mu.Lock()
		after := len(api.patches)
		api.mu.Unlock()
		if after != before {
			t.Error("draft should not be sent")
		}

		show, _, _ := run(t, online(), "jobs", "show", "job-2")
		if !strings.Contains(show, "Draft:     0 */2 * * *") {
			t.Errorf("draft not shown:\n%s", show)
		}

		out, _, err = run(t, online(), "jobs", "schedule", "job-2", "--from-draft", "--enable")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "schedule updated") {
			t.Errorf("out = %q", out)
		}
		j := api.job("job-2")
		if j.CronExpression != "0 */2 * * *" || !j.Enabled {
			t.Errorf("server job = %+v", j)
		}
	})

	t.Run("offline queue and flush", func(t *testing.T) {
		out, _, err := run(t, offlineApp(), "jobs", "schedule", "job-1", "--cron", "0 3 * * 1,3")
		if err != nil {
			t.Fatalf("offline schedule failed: %v", err)
		}
		if !strings.Contains(out, "queued") {
			t.Errorf("out = %q", out)
		}

		pending, _, err := run(t, offlineApp(), "jobs", "outbox")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(pending, "job-1") || !strings.Contains(pending, "0 3 * * 1,3") {
			t.Errorf("outbox output:\n%s", pending)
		}

		flushed, _, err := run(t, online(), "jobs", "flush")
		if err != nil {
			t.Fatalf("flush failed: %v", err)
		}
		if !strings.Contains(flushed, "sent 1, dropped 0, pending 0") {
			t.Errorf("flush output = %q", flushed)
		}
		if got := api.job("job-1").CronExpression; got != "0 3 * * 1,3" {
			t.Errorf("server cron = %q", got)
		}

		empty, _, _ := run(t, online(), "jobs", "outbox")
		if !strings.Contains(empty, "outbox is empty") {
			t.Errorf("outbox not drained: %q", empty)
		}
	})

	t.Run("upcoming", func(t *testing.T) {
		out, _, err := run(t, online(), "jobs", "upcoming")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "Nightly export") {
			t.Errorf("upcoming output:\n%s", out)
		}
	})
}

func TestJobsRequireAPIConfig(t *testing.T) {
	_, _, err := run(t, &app{}, "jobs", "list")
	if err == nil || !strings.Contains(err.Error(), "server_url is required") {
		t.Errorf("err = %v", err)
	}
}

func TestOffline(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{client.ErrNotFound, false},
		{fmt.Errorf("get job: %w", client.ErrUnauthorized), false},
		{&client.StatusError{StatusCode: 422}, false},
		{&client.StatusError{StatusCode: 503}, true},
		{errors.New("dial tcp: connection refused"), true},
	}
	for _, tt := range tests {
		if got := offline(tt.err); got != tt.want {
			t.Errorf("offline(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
