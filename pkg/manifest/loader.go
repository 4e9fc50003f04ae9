package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/morezero/castrpc/pkg/envelope"
	"github.com/morezero/castrpc/pkg/semver"
)

const logPrefix = "manifest:loader"

// EnvManifestFile names the environment variable consulted by LoadManifest.
const EnvManifestFile = "CASTRPC_MANIFEST_FILE"

var defaultPaths = []string{"config/castrpc.yaml", "castrpc.yaml", "config/castrpc.json", "castrpc.json"}

// LoadManifest loads the first readable manifest. It tries the given paths in
// order, then $CASTRPC_MANIFEST_FILE, then the default locations. Unparsable
// files are logged and skipped; with nothing found the empty default manifest
// is returned.
func LoadManifest(paths ...string) (*Manifest, error) {
	all := make([]string, 0, len(paths)+len(defaultPaths)+1)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv(EnvManifestFile); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, defaultPaths...)

	for _, p := range all {
		m, err := Load(p)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Warn(fmt.Sprintf("%s - Failed to load manifest %s: %v", logPrefix, p, err))
			}
			continue
		}
		slog.Info(fmt.Sprintf("%s - Loaded manifest %s from %s methods=%d", logPrefix, m.Name, p, len(m.Methods)))
		return m, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default manifest", logPrefix))
	return Default(), nil
}

// Load reads and validates one manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - read manifest: %w", logPrefix, err)
	}
	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Parse decodes manifest data. Files ending in .json use encoding/json; anything
// else is read as YAML, which also accepts JSON. Unknown YAML keys are rejected.
func Parse(data []byte, filename string) (*Manifest, error) {
	var m Manifest

	if strings.HasSuffix(filename, ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%s - parse JSON %s: %w", logPrefix, filename, err)
		}
		return &m, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%s - parse YAML %s: %w", logPrefix, filename, err)
	}
	return &m, nil
}

// Default returns the empty fallback manifest.
func Default() *Manifest {
	return &Manifest{
		Name:    "castrpc",
		Version: "1.0.0",
		Records: map[string]RecordSpec{},
		Enums:   map[string][]any{},
	}
}

// Validate checks structural rules that do not need type resolution: method
// names, versions, uniqueness and record field names.
func (m *Manifest) Validate() error {
	var errs []string

	if err := envelope.Validate(m.DefaultEnvelope); err != nil {
		errs = append(errs, err.Error())
	}

	seen := make(map[string]bool, len(m.Methods))
	for i, spec := range m.Methods {
		if !semver.ValidateMethodName(spec.Name) {
			errs = append(errs, fmt.Sprintf("methods[%d]: invalid name %q", i, spec.Name))
			continue
		}
		if spec.Version != "" {
			if err := semver.ValidateVersion(spec.Version); err != nil {
				errs = append(errs, fmt.Sprintf("method %q: %v", spec.Name, err))
			}
		}
		key := semver.BuildMethodRef(spec.Name, spec.Version)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("method %q declared twice", key))
		}
		seen[key] = true

		for j, p := range spec.Params {
			if p.Name == "" {
				errs = append(errs, fmt.Sprintf("method %q: params[%d] has no name", key, j))
			}
		}
	}

	for name, rec := range m.Records {
		if _, clash := m.Enums[name]; clash {
			errs = append(errs, fmt.Sprintf("record %q shadows an enum", name))
		}
		for j, f := range rec.Fields {
			if f.Name == "" {
				errs = append(errs, fmt.Sprintf("record %q: fields[%d] has no name", name, j))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s - invalid manifest %q: %s", logPrefix, m.Name, strings.Join(errs, "; "))
	}
	return nil
}

// MergeManifests overlays override onto base. Records and enums are replaced by
// name; methods are replaced by name@version and otherwise appended.
func MergeManifests(base, override *Manifest) *Manifest {
	merged := *base

	merged.Enums = make(map[string][]any, len(base.Enums)+len(override.Enums))
	for k, v := range base.Enums {
		merged.Enums[k] = v
	}
	for k, v := range override.Enums {
		merged.Enums[k] = v
	}

	merged.Records = make(map[string]RecordSpec, len(base.Records)+len(override.Records))
	for k, v := range base.Records {
		merged.Records[k] = v
	}
	for k, v := range override.Records {
		merged.Records[k] = v
	}

	merged.Methods = append([]MethodSpec(nil), base.Methods...)
	index := make(map[string]int, len(merged.Methods))
	for i, spec := range merged.Methods {
		index[semver.BuildMethodRef(spec.Name, spec.Version)] = i
	}
	for _, spec := range override.Methods {
		key := semver.BuildMethodRef(spec.Name, spec.Version)
		if i, ok := index[key]; ok {
			merged.Methods[i] = spec
			continue
		}
		index[key] = len(merged.Methods)
		merged.Methods = append(merged.Methods, spec)
	}

	if override.DefaultEnvelope != "" {
		merged.DefaultEnvelope = override.DefaultEnvelope
	}
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	return &merged
}
