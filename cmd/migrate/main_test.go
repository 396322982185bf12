package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testPostgresDSN(t *testing.T) string {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("BASKET_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}
	return dsn
}

func TestParseOptions(t *testing.T) {
	t.Setenv(envPostgresDSN, "")

	testCases := []struct {
		name    string
		args    []string
		want    options
		wantErr string
	}{
		{
			name: "defaults to up",
			args: []string{"-dsn=postgres://x"},
			want: options{direction: "up", dsn: "postgres://x"},
		},
		{
			name: "down defaults to one step",
			args: []string{"-direction=DOWN", "-dsn=postgres://x"},
			want: options{direction: "down", steps: 1, dsn: "postgres://x"},
		},
		{
			name:    "missing dsn",
			args:    []string{"-direction=status"},
			wantErr: envPostgresDSN,
		},
		{
			name:    "unsupported direction",
			args:    []string{"-direction=sideways", "-dsn=postgres://x"},
			wantErr: "unsupported direction",
		},
		{
			name:    "seed without file",
			args:    []string{"-direction=seed", "-dsn=postgres://x"},
			wantErr: "-seed is required",
		},
		{
			name:    "unknown flag",
			args:    []string{"-verbose"},
			wantErr: "flag provided but not defined",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseOptions(tc.args)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestParseOptions_DSNFromEnv(t *testing.T) {
	t.Setenv(envPostgresDSN, " postgres://env ")

	opts, err := parseOptions([]string{"-direction=status"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.dsn != "postgres://env" {
		t.Fatalf("expected dsn from env, got %q", opts.dsn)
	}
}

func TestRun_MigrateAndSeed(t *testing.T) {
	dsn := testPostgresDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	if err := run(ctx, options{direction: "up", dsn: dsn}, &out); err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	if !strings.Contains(out.String(), "migrate up ok") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	content := "marts:\n  - id: 9001\n    name: CLI Mart\n    lat: 17.7\n    long: 83.3\n    approved: true\n"
	if err := os.WriteFile(seedPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := run(ctx, options{direction: "seed", dsn: dsn, seedFile: seedPath}, &out); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if !strings.Contains(out.String(), "marts=1") {
		t.Fatalf("unexpected seed output: %s", out.String())
	}

	out.Reset()
	if err := run(ctx, options{direction: "status", dsn: dsn}, &out); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out.String(), "pending=0") {
		t.Fatalf("expected no pending migrations: %s", out.String())
	}
}

func TestMainMissingDSNExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_EXIT") == "1" {
		os.Args = []string{"migrate", "-direction=status"}
		_ = os.Unsetenv(envPostgresDSN)
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMainMissingDSNExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}
