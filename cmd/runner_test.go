package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytq/internal/credentials"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/services"
	"github.com/desertthunder/ytq/internal/shared"
	tu "github.com/desertthunder/ytq/internal/testing"
	"github.com/urfave/cli/v3"
)

var testChannel = models.ChannelID{Category: "gaming", Name: "main"}

type fakeUploader struct {
	fail map[string]bool
}

func (f *fakeUploader) Upload(_ context.Context, job *models.UploadJob, progress func(int)) (string, error) {
	if f.fail[filepath.Base(job.VideoPath)] {
		return "", fmt.Errorf("%w: open %s: no such file", shared.ErrTransferIO, job.VideoPath)
	}
	progress(0)
	progress(100)
	return "vid-" + strings.TrimSuffix(filepath.Base(job.VideoPath), ".mp4"), nil
}

type testEnv struct {
	runner   *Runner
	output   *bytes.Buffer
	config   *shared.Config
	endpoint *tu.TokenEndpoint
	uploader *fakeUploader
	opened   []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		output:   &bytes.Buffer{},
		endpoint: tu.NewTokenEndpoint(t),
		uploader: &fakeUploader{fail: map[string]bool{}},
	}

	env.config = shared.DefaultConfig()
	env.config.Channels.Root = filepath.Join(t.TempDir(), "channels")
	env.config.Database.Path = filepath.Join(t.TempDir(), "ytq.db")
	env.config.OAuth.Host = "127.0.0.1"
	env.config.OAuth.IdleTimeoutSeconds = 10
	env.config.OAuth.OpenBrowser = true

	env.runner = NewRunner(RunnerOpts{
		Config:     env.config,
		Logger:     shared.DiscardLogger(),
		Output:     env.output,
		HTTPClient: env.endpoint.Client(),
		Uploaders: func(context.Context, models.ChannelID, *models.CredentialRecord) (services.Uploader, error) {
			return env.uploader, nil
		},
		Browser: func(u string) error {
			env.opened = append(env.opened, u)
			return nil
		},
	})
	return env
}

func (e *testEnv) run(args ...string) error {
	app := &cli.Command{Name: "ytq", Commands: e.runner.register()}
	return app.Run(context.Background(), append([]string{"ytq"}, args...))
}

func (e *testEnv) connect(t *testing.T, ch models.ChannelID) {
	t.Helper()
	if err := e.runner.store.WriteSecret(ch, tu.SecretJSON("installed", e.endpoint.URL)); err != nil {
		t.Fatalf("WriteSecret failed: %v", err)
	}
	rec := &models.CredentialRecord{
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).UTC(),
		Scopes:       credentials.Scopes,
	}
	if err := e.runner.store.Persist(ch, rec); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
}

func writeManifest(t *testing.T, dir string, names ...string) string {
	t.Helper()
	var b strings.Builder
	for i, name := range names {
		fmt.Fprintf(&b, "[[job]]\nvideo_path = %q\ntitle = \"Video %d\"\ntags = \"one, two\"\n\n", name, i+1)
	}
	path := filepath.Join(dir, "jobs.toml")
	tu.MustWriteFile(t, path, []byte(b.String()))
	return path
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.store == nil || runner.uploaders == nil || runner.browser == nil {
				t.Error("expected store, uploaders and browser to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil http client uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		var names []string
		for _, c := range runner.register() {
			names = append(names, c.Name)
		}
		if strings.Join(names, ",") != "setup,channel,upload,history" {
			t.Errorf("unexpected commands: %v", names)
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})
		if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
			t.Fatalf("writeJSON failed: %v", err)
		}
		if output.String() != "{\"key\":\"value\"}\n" {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("writePlain with failing writer", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := runner.writePlain("hello"); err == nil {
			t.Error("expected write error")
		}
	})
}

func TestChannelCommands(t *testing.T) {
	t.Run("status lists every channel", func(t *testing.T) {
		env := newTestEnv(t)
		env.connect(t, testChannel)
		if err := env.runner.store.WritePlaceholder(models.ChannelID{Category: "art", Name: "daily"}); err != nil {
			t.Fatalf("WritePlaceholder failed: %v", err)
		}

		if err := env.run("channel", "status", "--json"); err != nil {
			t.Fatalf("channel status failed: %v", err)
		}

		var got []channelStatus
		if err := json.Unmarshal(env.output.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, env.output.String())
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 channels, got %d", len(got))
		}
		if got[0].Channel != "art/daily" || got[0].Status != "Not Authorized" || got[0].Usable {
			t.Errorf("unexpected placeholder status: %+v", got[0])
		}
		if got[1].Channel != "gaming/main" || got[1].Status != "Connected" || !got[1].Usable || got[1].Expiry == nil {
			t.Errorf("unexpected connected status: %+v", got[1])
		}
	})

	t.Run("status of one channel", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("channel", "status", "gaming/main"); err != nil {
			t.Fatalf("channel status failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Missing Secret") {
			t.Errorf("expected missing secret, got:\n%s", env.output.String())
		}
	})

	t.Run("status with empty root", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("channel", "status"); err != nil {
			t.Fatalf("channel status failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "No channels found") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
	})

	t.Run("secret placeholder", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("channel", "secret", "gaming/main"); err != nil {
			t.Fatalf("channel secret failed: %v", err)
		}
		if got := tu.MustReadFile(t, env.runner.store.SecretPath(testChannel)); got != string(credentials.PlaceholderSecret) {
			t.Errorf("expected placeholder, got %q", got)
		}
	})

	t.Run("secret from file", func(t *testing.T) {
		env := newTestEnv(t)
		src := filepath.Join(t.TempDir(), "downloaded.json")
		tu.MustWriteFile(t, src, tu.SecretJSON("installed", env.endpoint.URL))

		if err := env.run("channel", "secret", "--file", src, "gaming/main"); err != nil {
			t.Fatalf("channel secret failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "ytq channel auth gaming/main") {
			t.Errorf("expected next step hint, got:\n%s", env.output.String())
		}
	})

	t.Run("secret rejects invalid file", func(t *testing.T) {
		env := newTestEnv(t)
		src := filepath.Join(t.TempDir(), "downloaded.json")
		tu.MustWriteFile(t, src, []byte(`{"other": {}}`))

		err := env.run("channel", "secret", "--file", src, "gaming/main")
		if !errors.Is(err, shared.ErrSecretInvalid) {
			t.Errorf("expected ErrSecretInvalid, got %v", err)
		}
		tu.AssertFileMissing(t, env.runner.store.SecretPath(testChannel))
	})

	t.Run("missing channel argument", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("channel", "auth"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("auth without secret opens nothing", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("channel", "auth", "gaming/main"); !errors.Is(err, shared.ErrSecretMissing) {
			t.Errorf("expected ErrSecretMissing, got %v", err)
		}
		if len(env.opened) != 0 {
			t.Error("browser should not open without a secret")
		}
	})
}

func TestChannelAuth(t *testing.T) {
	env := newTestEnv(t)
	if err := env.runner.store.WriteSecret(testChannel, tu.SecretJSON("installed", env.endpoint.URL)); err != nil {
		t.Fatalf("WriteSecret failed: %v", err)
	}

	redirects := make(chan error, 1)
	env.runner.browser = func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		redirectURI, err := url.Parse(u.Query().Get("redirect_uri"))
		if err != nil {
			return err
		}

		target := fmt.Sprintf("http://127.0.0.1:%s/?state=%s&code=auth-code", redirectURI.Port(), url.QueryEscape(u.Query().Get("state")))
		go func() {
			resp, err := http.Get(target)
			if err == nil {
				resp.Body.Close()
			}
			redirects <- err
		}()
		return nil
	}

	if err := env.run("channel", "auth", "gaming/main"); err != nil {
		t.Fatalf("channel auth failed: %v", err)
	}
	if err := <-redirects; err != nil {
		t.Errorf("redirect request failed: %v", err)
	}

	if !strings.Contains(env.output.String(), "gaming/main authorized") {
		t.Errorf("expected success line, got:\n%s", env.output.String())
	}
	if got := env.runner.store.Classify(context.Background(), testChannel).Status; got != credentials.Connected {
		t.Errorf("expected Connected, got %v", got)
	}
}

func TestUploadRun(t *testing.T) {
	t.Run("uploads manifest and records history", func(t *testing.T) {
		env := newTestEnv(t)
		env.connect(t, testChannel)
		env.uploader.fail["second.mp4"] = true
		manifest := writeManifest(t, t.TempDir(), "first.mp4", "second.mp4", "third.mp4")
		reportPath := filepath.Join(t.TempDir(), "report.csv")

		err := env.run("upload", "run", "--manifest", manifest, "--report", reportPath, "--format", "csv", "gaming/main")
		if err == nil || !strings.Contains(err.Error(), "1 of 3 uploads failed") {
			t.Fatalf("expected partial failure, got %v", err)
		}

		output := env.output.String()
		for _, want := range []string{"[done]", "[error]", "all done: 2 uploaded, 1 failed"} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q:\n%s", want, output)
			}
		}

		report := tu.MustReadFile(t, reportPath)
		if !strings.Contains(report, "vid-first") || !strings.Contains(report, "vid-third") {
			t.Errorf("report missing video ids:\n%s", report)
		}

		env.output.Reset()
		if err := env.run("history", "--channel", "gaming/main"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(env.output.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 history rows, got %d:\n%s", len(lines), env.output.String())
		}
		if !strings.Contains(lines[0], "Video 3") || !strings.Contains(lines[2], "Video 1") {
			t.Errorf("history should be newest first:\n%s", env.output.String())
		}
	})

	t.Run("dry run", func(t *testing.T) {
		env := newTestEnv(t)
		dir := t.TempDir()
		manifest := writeManifest(t, dir, "first.mp4")

		if err := env.run("upload", "run", "--manifest", manifest, "--dry-run", "gaming/main"); err != nil {
			t.Fatalf("dry run failed: %v", err)
		}
		if !strings.Contains(env.output.String(), filepath.Join(dir, "first.mp4")) {
			t.Errorf("expected resolved path, got:\n%s", env.output.String())
		}
	})

	t.Run("requires authorized channel", func(t *testing.T) {
		env := newTestEnv(t)
		manifest := writeManifest(t, t.TempDir(), "first.mp4")

		err := env.run("upload", "run", "--manifest", manifest, "gaming/main")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("history rejects markdown", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("history", "--format", "markdown"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestLoadManifest(t *testing.T) {
	t.Run("resolves relative paths", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "jobs.toml")
		tu.MustWriteFile(t, path, []byte(`
[[job]]
video_path = "clips/a.mp4"
thumbnail_path = "thumbs/a.png"
title = "A"
privacy = "public"

[[job]]
video_path = "/abs/b.mp4"
title = "B"
schedule_date = "2025-03-01"
schedule_time = "15:00"
`))

		m, err := LoadManifest(path)
		if err != nil {
			t.Fatalf("LoadManifest failed: %v", err)
		}
		if m.Jobs[0].VideoPath != filepath.Join(dir, "clips", "a.mp4") || m.Jobs[0].ThumbnailPath != filepath.Join(dir, "thumbs", "a.png") {
			t.Errorf("relative paths not resolved: %+v", m.Jobs[0])
		}
		if m.Jobs[1].VideoPath != "/abs/b.mp4" {
			t.Errorf("absolute path changed: %s", m.Jobs[1].VideoPath)
		}

		jobs, err := m.UploadJobs(time.UTC)
		if err != nil {
			t.Fatalf("UploadJobs failed: %v", err)
		}
		if jobs[0].Privacy != models.PrivacyPublic {
			t.Errorf("expected public, got %s", jobs[0].Privacy)
		}
		if jobs[1].PublishAt == nil || jobs[1].Privacy != models.PrivacyPrivate {
			t.Errorf("scheduled job should be private with publish time: %+v", jobs[1])
		}
	})

	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: "# nothing here\n"},
		{name: "unknown key", content: "[[job]]\nvideo_path = \"a.mp4\"\nvisibility = \"public\"\n"},
		{name: "invalid toml", content: "[[job]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "jobs.toml")
			tu.MustWriteFile(t, path, []byte(tt.content))
			if _, err := LoadManifest(path); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	t.Run("invalid packet", func(t *testing.T) {
		m := &Manifest{Jobs: []models.UploadPacket{{VideoPath: "a.mp4", Privacy: "secret"}}}
		if _, err := m.UploadJobs(time.UTC); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
