package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_YAML(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "orders.yaml"))
	if err != nil {
		t.Fatalf("manifest:loader_test - Load failed: %v", err)
	}

	if m.Name != "orders" || m.Version != "1.2.0" || m.DefaultEnvelope != "integrity" {
		t.Errorf("manifest:loader_test - unexpected header: %s %s %s", m.Name, m.Version, m.DefaultEnvelope)
	}
	if len(m.Methods) != 2 {
		t.Fatalf("manifest:loader_test - expected 2 methods, got %d", len(m.Methods))
	}

	create := m.Methods[0]
	if create.Params[0].Path != "payload" || !create.Params[0].Required {
		t.Errorf("manifest:loader_test - inline param type not decoded: %+v", create.Params[0])
	}
	if create.RateLimit == nil || create.RateLimit.Burst != 100 {
		t.Errorf("manifest:loader_test - rate limit = %+v", create.RateLimit)
	}
	if create.HandlerName() != "orders.create" {
		t.Errorf("manifest:loader_test - handler = %s, want orders.create", create.HandlerName())
	}
	if m.Methods[1].HandlerName() != "orders.lookup" {
		t.Errorf("manifest:loader_test - handler = %s, want orders.lookup", m.Methods[1].HandlerName())
	}

	order := m.Records["Order"]
	names := make([]string, 0, len(order.Fields))
	for _, f := range order.Fields {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "id,quantity,priority,shipTo,tags" {
		t.Errorf("manifest:loader_test - field order = %s", got)
	}
}

func TestParse_JSON(t *testing.T) {
	data := []byte(`{
		"name": "svc",
		"version": "2.0.0",
		"methods": [
			{"name": "ping", "params": [{"name": "n", "types": ["number"], "default": 3}]}
		]
	}`)

	m, err := Parse(data, "svc.json")
	if err != nil {
		t.Fatalf("manifest:loader_test - Parse failed: %v", err)
	}
	p := m.Methods[0].Params[0]
	if p.Name != "n" || p.Types[0] != "number" || p.Default != float64(3) {
		t.Errorf("manifest:loader_test - unexpected param: %+v", p)
	}
}

func TestParse_UnknownFieldsRejected(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		filename string
	}{
		{name: "yaml", data: "name: x\nmethods: []\nbogus: 1\n", filename: "x.yaml"},
		{name: "json", data: `{"name": "x", "methods": [], "bogus": 1}`, filename: "x.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), tt.filename); err == nil {
				t.Error("manifest:loader_test - expected unknown field error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       Manifest
		wantErr string
	}{
		{
			name: "valid",
			m:    Manifest{Name: "ok", Methods: []MethodSpec{{Name: "a.b", Version: "1.0.0"}, {Name: "a.b"}}},
		},
		{
			name:    "bad name",
			m:       Manifest{Name: "x", Methods: []MethodSpec{{Name: "9bad name"}}},
			wantErr: "invalid name",
		},
		{
			name:    "bad version",
			m:       Manifest{Name: "x", Methods: []MethodSpec{{Name: "a", Version: "one"}}},
			wantErr: "method \"a\"",
		},
		{
			name:    "duplicate",
			m:       Manifest{Name: "x", Methods: []MethodSpec{{Name: "a", Version: "1.0.0"}, {Name: "a", Version: "1.0.0"}}},
			wantErr: "declared twice",
		},
		{
			name:    "unnamed param",
			m:       Manifest{Name: "x", Methods: []MethodSpec{{Name: "a", Params: []ParamSpec{{}}}}},
			wantErr: "params[0] has no name",
		},
		{
			name:    "unknown envelope",
			m:       Manifest{Name: "x", DefaultEnvelope: "soap"},
			wantErr: "unknown strategy",
		},
		{
			name: "record shadows enum",
			m: Manifest{
				Name:    "x",
				Enums:   map[string][]any{"Color": {"red"}},
				Records: map[string]RecordSpec{"Color": {}},
			},
			wantErr: "shadows an enum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("manifest:loader_test - unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("manifest:loader_test - error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadManifest_Fallbacks(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("name: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvManifestFile, filepath.Join("testdata", "orders.yaml"))

	m, err := LoadManifest(filepath.Join(dir, "missing.yaml"), broken)
	if err != nil {
		t.Fatalf("manifest:loader_test - LoadManifest failed: %v", err)
	}
	if m.Name != "orders" {
		t.Errorf("manifest:loader_test - expected env manifest, got %s", m.Name)
	}
}

func TestLoadManifest_Default(t *testing.T) {
	t.Setenv(EnvManifestFile, "")
	// Run from an empty directory so none of the default locations exist.
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	m, err := LoadManifest()
	if err != nil {
		t.Fatalf("manifest:loader_test - LoadManifest failed: %v", err)
	}
	if m.Name != "castrpc" || len(m.Methods) != 0 {
		t.Errorf("manifest:loader_test - unexpected default manifest: %+v", m)
	}
}

func TestMergeManifests(t *testing.T) {
	base := &Manifest{
		Name:    "base",
		Version: "1.0.0",
		Enums:   map[string][]any{"level": {"a"}},
		Methods: []MethodSpec{
			{Name: "a", Description: "base a"},
			{Name: "b", Version: "1.0.0"},
		},
	}
	override := &Manifest{
		DefaultEnvelope: "integrity",
		Enums:           map[string][]any{"level": {"a", "b"}},
		Records:         map[string]RecordSpec{"R": {}},
		Methods: []MethodSpec{
			{Name: "a", Description: "override a"},
			{Name: "b", Version: "2.0.0"},
		},
	}

	merged := MergeManifests(base, override)

	if merged.Name != "base" || merged.DefaultEnvelope != "integrity" {
		t.Errorf("manifest:loader_test - unexpected header: %s %s", merged.Name, merged.DefaultEnvelope)
	}
	if len(merged.Methods) != 3 || merged.Methods[0].Description != "override a" {
		t.Errorf("manifest:loader_test - unexpected methods: %+v", merged.Methods)
	}
	if len(merged.Enums["level"]) != 2 || len(merged.Records) != 1 {
		t.Errorf("manifest:loader_test - enums/records not merged: %v %v", merged.Enums, merged.Records)
	}
	if len(base.Methods) != 2 || base.Methods[0].Description != "base a" {
		t.Error("manifest:loader_test - base manifest was mutated")
	}
}
