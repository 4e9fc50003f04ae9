// Package main is the entrypoint for the castrpc command.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/morezero/castrpc/internal/app"
	"github.com/morezero/castrpc/internal/config"
	"github.com/morezero/castrpc/pkg/manifest"
	"github.com/morezero/castrpc/pkg/registry"
)

const usage = `Usage: castrpc [command]
       castrpc check [manifest]                     Compile and prepare every method in the manifest.
       castrpc describe <method>                    Print a method description as JSON.
       castrpc call [-envelope name] <method> [json] Bind JSON input to a method and print the result.
       castrpc cast <record> <json>                 Build a manifest record from JSON.
       castrpc serve-metrics                        Serve /metrics and /health on CASTRPC_METRICS_ADDR.
       castrpc help                                 Show this help.

Manifest methods have no handlers in the CLI: calling one prints the arguments
it would receive. The system.* methods run for real.

Environment: CASTRPC_MANIFEST_FILE, CASTRPC_ENV, CASTRPC_DEFAULT_ENVELOPE,
CASTRPC_METRICS_ADDR, CASTRPC_CALL_TIMEOUT, COMMS_URL, LOG_LEVEL. A .env file in
the working directory is loaded first.
`

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := "help"
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "check":
		err = runCheck(args, stdout)
	case "describe":
		err = runDescribe(args, stdout)
	case "call":
		err = runCall(args, stdout, stderr)
	case "cast":
		err = runCast(args, stdout)
	case "serve-metrics":
		err = runServe()
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command %q.\n%s", cmd, usage)
		return 2
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "castrpc %s: %v\n%s", cmd, err, usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "castrpc %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

// newApp loads configuration and builds the app. manifestPath, when set, wins
// over CASTRPC_MANIFEST_FILE.
func newApp(manifestPath string) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	app.SetupLogging(os.Stderr, cfg.LogLevel)

	params := app.NewParams{}
	if manifestPath != "" {
		m, err := manifest.Load(manifestPath)
		if err != nil {
			return nil, err
		}
		params.Manifest = m
	} else {
		m, err := manifest.LoadManifest(cfg.ManifestFile)
		if err != nil {
			return nil, err
		}
		params.Manifest = m
	}
	params.Handlers = dryRunHandlers(params.Manifest)

	return app.New(cfg, params)
}

// dryRunHandlers binds every manifest method to a handler returning its bound
// arguments by name.
func dryRunHandlers(m *manifest.Manifest) manifest.Handlers {
	handlers := make(manifest.Handlers, len(m.Methods))
	for _, spec := range m.Methods {
		handlers[spec.HandlerName()] = func(_ *registry.Call, args registry.Args) (any, error) {
			return args.Map(), nil
		}
	}
	return handlers
}

func runCheck(args []string, stdout io.Writer) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	a, err := newApp(path)
	if err != nil {
		return err
	}
	defer a.Close()

	finalizeErr := a.Finalize()

	m := a.Manifest()
	fmt.Fprintf(stdout, "manifest %s@%s\n", m.Name, m.Version)
	names := make([]string, 0, len(a.Compiled().Records))
	for name := range a.Compiled().Records {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(stdout, "  record %s\n", name)
	}
	for _, info := range a.Registry().Methods() {
		state := "ok"
		if !info.Prepared {
			state = "FAILED"
		}
		ref := info.Name
		if info.Version != "" {
			ref += "@" + info.Version
		}
		fmt.Fprintf(stdout, "  method %-32s %s\n", ref, state)
	}
	if finalizeErr != nil {
		return finalizeErr
	}
	fmt.Fprintf(stdout, "status %s\n", a.Registry().Health().Status)
	return nil
}

func runDescribe(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: describe takes one method", errUsage)
	}
	a, err := newApp("")
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.Registry().Describe(args[0])
	if err != nil {
		return err
	}
	return writeJSON(stdout, info)
}

func runCall(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envelopeName := fs.String("envelope", "", "override the envelope strategy")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	rest := fs.Args()
	if len(rest) < 1 || len(rest) > 2 {
		return fmt.Errorf("%w: call takes a method and optional JSON input", errUsage)
	}

	input := map[string]any{}
	if len(rest) == 2 {
		if err := json.Unmarshal([]byte(rest[1]), &input); err != nil {
			return fmt.Errorf("input must be a JSON object: %w", err)
		}
	}

	a, err := newApp("")
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Finalize(); err != nil {
		fmt.Fprintf(stderr, "castrpc call: some methods failed to prepare: %v\n", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.Config().CallTimeout)
	defer cancel()

	res := a.Registry().Call(ctx, rest[0], input, &registry.CallOptions{Envelope: *envelopeName})
	if err := writeJSON(stdout, res); err != nil {
		return err
	}
	if !res.Succeeded {
		return fmt.Errorf("call failed with status %d", res.Meta.Status)
	}
	return nil
}

func runCast(args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: cast takes a record name and JSON input", errUsage)
	}
	var raw any
	if err := json.Unmarshal([]byte(args[1]), &raw); err != nil {
		return fmt.Errorf("input must be JSON: %w", err)
	}

	a, err := newApp("")
	if err != nil {
		return err
	}
	defer a.Close()

	def, ok := a.Compiled().Record(args[0])
	if !ok {
		return fmt.Errorf("unknown record %q", args[0])
	}
	rec, err := def.Build(raw)
	if err != nil {
		return err
	}
	return writeJSON(stdout, rec)
}

func runServe() error {
	a, err := newApp("")
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Finalize(); err != nil {
		return err
	}
	return a.Serve(context.Background())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
