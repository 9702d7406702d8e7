package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoader_Save(t *testing.T) {
	type testCase struct {
		name    string
		cfg     *AppConfig
		wantErr bool
	}

	tests := []testCase{
		{
			name: "Basic Config",
			cfg: &AppConfig{
				CurrentProfile: "default",
				Profiles: map[string]Profile{
					"default": {
						Provider: "aws",
						Region:   "us-east-1",
					},
				},
			},
			wantErr: false,
		},
		{
			name: "Config With Env And Wait",
			cfg: &AppConfig{
				CurrentProfile: "dev",
				Profiles: map[string]Profile{
					"dev": {
						Provider: "aws",
						Region:   "us-west-1",
						Env: map[string]string{
							"FOO": "bar",
							"BAZ": "qux",
						},
						Wait: WaitConfig{
							InitialDelay: Duration{5 * time.Second},
							Timeout:      Duration{3 * time.Minute},
						},
					},
				},
			},
			wantErr: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "nested", "config.yaml")
			loader := NewLoaderAt(configPath)

			err := loader.Save(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Errorf("Save() error = %v, wantErr %v", err, tc.wantErr)
			}

			if !tc.wantErr {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("Failed to read saved file: %v", err)
				}

				var loadedCfg AppConfig
				if err := yaml.Unmarshal(content, &loadedCfg); err != nil {
					t.Errorf("Saved content is not valid YAML: %v", err)
				}

				if loadedCfg.CurrentProfile != tc.cfg.CurrentProfile {
					t.Errorf("Config mismatch. Got %s, want %s", loadedCfg.CurrentProfile, tc.cfg.CurrentProfile)
				}

				if len(loadedCfg.Profiles) != len(tc.cfg.Profiles) {
					t.Errorf("Profile count mismatch. Got %d, want %d", len(loadedCfg.Profiles), len(tc.cfg.Profiles))
				}

				for name, p := range tc.cfg.Profiles {
					loadedP, ok := loadedCfg.Profiles[name]
					if !ok {
						t.Errorf("Profile %s missing", name)
						continue
					}
					if len(p.Env) != len(loadedP.Env) {
						t.Errorf("Profile %s Env count mismatch. Got %d, want %d", name, len(loadedP.Env), len(p.Env))
					}
					for k, v := range p.Env {
						if loadedP.Env[k] != v {
							t.Errorf("Profile %s Env mismatch for key %s. Got %s, want %s", name, k, loadedP.Env[k], v)
						}
					}
					if loadedP.Wait != p.Wait {
						t.Errorf("Profile %s Wait mismatch. Got %+v, want %+v", name, loadedP.Wait, p.Wait)
					}
				}
			}
		})
	}
}

func TestLoader_Load(t *testing.T) {
	type fileState struct {
		name    string
		content []byte
	}

	type testCase struct {
		name        string
		files       []fileState // Files to create before test
		wantProfile string
		wantErr     bool
	}

	validYAML, _ := yaml.Marshal(AppConfig{
		CurrentProfile: "yaml-profile",
		Profiles:       map[string]Profile{"default": {Provider: "aws"}},
	})

	tests := []testCase{
		{
			name:        "No Config Files",
			files:       []fileState{},
			wantProfile: "",
			wantErr:     false,
		},
		{
			name: "YAML Only",
			files: []fileState{
				{name: "config.yaml", content: validYAML},
			},
			wantProfile: "yaml-profile",
			wantErr:     false,
		},
		{
			name: "Broken YAML",
			files: []fileState{
				{name: "config.yaml", content: []byte("profiles: [")},
			},
			wantErr: true,
		},
		{
			name: "Bad Duration",
			files: []fileState{
				{name: "config.yaml", content: []byte("profiles:\n  a:\n    wait:\n      timeout: soon\n")},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			loader := &Loader{configPath: configPath}

			for _, f := range tc.files {
				path := filepath.Join(tmpDir, f.name)
				if err := os.WriteFile(path, f.content, 0644); err != nil {
					t.Fatalf("Failed to write setup file %s: %v", f.name, err)
				}
			}

			cfg, err := loader.Load()
			if (err != nil) != tc.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tc.wantErr)
			}

			if !tc.wantErr {
				if cfg.CurrentProfile != tc.wantProfile {
					t.Errorf("Expected profile %s, got %s", tc.wantProfile, cfg.CurrentProfile)
				}
				if cfg.Profiles == nil {
					t.Error("Profiles map should never be nil after Load")
				}
			}
		})
	}
}

func TestNewLoader_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfigPath, path)

	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if loader.GetConfigPath() != path {
		t.Errorf("GetConfigPath() = %s, want %s", loader.GetConfigPath(), path)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: `d: 30s`, want: 30 * time.Second},
		{in: `d: 1m30s`, want: 90 * time.Second},
		{in: `d: ""`, want: 0},
		{in: `d: 1500`, want: 1500},
		{in: `d: later`, wantErr: true},
		{in: `d: [1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var doc struct {
				D Duration `yaml:"d"`
			}
			err := yaml.Unmarshal([]byte(tt.in), &doc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && doc.D.Duration != tt.want {
				t.Errorf("Duration = %v, want %v", doc.D.Duration, tt.want)
			}
		})
	}
}

func TestWaitConfig_RetryConfig(t *testing.T) {
	defaults := WaitConfig{}.RetryConfig()
	if defaults.Timeout != 10*time.Minute {
		t.Errorf("default timeout = %v, want 10m", defaults.Timeout)
	}

	cfg := WaitConfig{InitialDelay: Duration{time.Second}, Multiplier: 3}.RetryConfig()
	if cfg.InitialDelay != time.Second || cfg.Multiplier != 3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxDelay != defaults.MaxDelay {
		t.Errorf("MaxDelay = %v, want default %v", cfg.MaxDelay, defaults.MaxDelay)
	}
}

func TestAppConfig_Profile(t *testing.T) {
	cfg := AppConfig{
		CurrentProfile: "dev",
		Profiles: map[string]Profile{
			"dev":  {Provider: "aws"},
			"home": {Provider: "proxmox"},
		},
	}

	p, name, err := cfg.Profile("")
	if err != nil || name != "dev" || p.Provider != "aws" {
		t.Errorf("Profile(\"\") = %+v, %s, %v", p, name, err)
	}

	p, name, err = cfg.Profile("home")
	if err != nil || name != "home" || p.Provider != "proxmox" {
		t.Errorf("Profile(home) = %+v, %s, %v", p, name, err)
	}

	if _, _, err := cfg.Profile("missing"); err == nil {
		t.Error("expected error for missing profile")
	}

	empty := NewAppConfig()
	if _, _, err := empty.Profile(""); err == nil {
		t.Error("expected error when no profiles exist")
	}
}
