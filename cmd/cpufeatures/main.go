package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/leodido/cpufeatures"
	"github.com/leodido/cpufeatures/internal/crosscheck"
	"github.com/leodido/structcli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"
	"go.uber.org/zap"
)

// Build metadata injected via ldflags.
// When built without ldflags (e.g., plain `go build`), these remain
// at their zero values and the version command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

// errRequirementsNotMet is returned by check after it has reported the
// missing feature.
var errRequirementsNotMet = errors.New("requirements not met")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRequirementsNotMet) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The detector options are applied to
// every detector the commands create, after the defaults.
func newRootCmd(detectorOpts ...cpufeatures.DetectorOption) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "cpufeatures",
		Short: "x86 instruction-set feature detection",
		Long: `cpufeatures probes the processor for SIMD instruction-set extensions.

It queries CPUID and XGETBV and reports SSE2 through SSE4.2, AVX, AVX2,
AVX-512, F16C, FMA and ABM. AVX is only reported when the operating system
saves the YMM register state on context switch. Use it for operator
diagnostics or CI/CD gating.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log detection details to stderr")

	logger := func() *zap.Logger { return newLogger(verbose) }

	root.AddCommand(probeCmd(logger, detectorOpts))
	root.AddCommand(checkCmd(logger, detectorOpts))
	root.AddCommand(compareCmd(logger, detectorOpts))
	root.AddCommand(versionCmd())
	return root
}

// newLogger returns a development console logger on stderr when verbose,
// and a no-op logger otherwise.
func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// sourceKind selects the leaf query primitive.
type sourceKind enumflag.Flag

const (
	sourceNative sourceKind = iota
	sourceTarget
)

var sourceIdentifierMap = map[sourceKind][]string{
	sourceNative: {"native"},
	sourceTarget: {"target"},
}

func parseSource(input string) (sourceKind, error) {
	var s sourceKind
	if strings.TrimSpace(input) == "" {
		return sourceNative, nil
	}
	value := enumflag.New(&s, "source", sourceIdentifierMap, enumflag.EnumCaseInsensitive)
	if err := value.Set(strings.TrimSpace(input)); err != nil {
		return sourceNative, fmt.Errorf("unknown source: %q (available: native, target)", input)
	}
	return s, nil
}

func newDetector(source sourceKind, logger *zap.Logger, extra []cpufeatures.DetectorOption) *cpufeatures.Detector {
	opts := []cpufeatures.DetectorOption{cpufeatures.WithLogger(logger)}
	if source == sourceTarget {
		opts = append(opts, cpufeatures.WithQuerier(cpufeatures.TargetQuerier{}))
	}
	opts = append(opts, extra...)
	return cpufeatures.NewDetector(opts...)
}

// ProbeOptions defines flags for the probe subcommand.
type ProbeOptions struct {
	JSON   bool       `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
	Raw    bool       `flag:"raw" flagshort:"r" flagdescr:"Include the raw CPUID and XCR0 values"`
	Source sourceKind `flag:"source" flagshort:"s" flagdescr:"Query primitive: native or target (build target guarantees)" flagcustom:"true"`
}

func (o *ProbeOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *ProbeOptions) DefineSource(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*sourceKind)
	return enumflag.New(fieldPtr, "source", sourceIdentifierMap, enumflag.EnumCaseInsensitive), descr
}

func (o *ProbeOptions) DecodeSource(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseSource(s)
}

// featureStatus is one feature line of the probe output.
type featureStatus struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// probeOutput is the JSON shape of the probe subcommand.
// Features are listed in report order.
type probeOutput struct {
	Features []featureStatus     `json:"features"`
	Raw      *cpufeatures.Report `json:"raw,omitempty"`
}

func newProbeOutput(r cpufeatures.Report, raw bool) probeOutput {
	out := probeOutput{Features: make([]featureStatus, 0, len(cpufeatures.FeatureValues()))}
	for _, f := range cpufeatures.FeatureValues() {
		out.Features = append(out.Features, featureStatus{Name: f.String(), Present: r.Features.Has(f)})
	}
	if raw {
		out.Raw = &r
	}
	return out
}

func probeCmd(logger func() *zap.Logger, detectorOpts []cpufeatures.DetectorOption) *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Detect CPU features and display results",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			r := newDetector(opts.Source, logger(), detectorOpts).Report()
			out := c.OutOrStdout()

			if opts.JSON {
				return printJSON(out, newProbeOutput(r, opts.Raw))
			}

			if opts.Raw {
				fmt.Fprint(out, r)
				return nil
			}
			fmt.Fprint(out, r.Features)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// CheckOptions defines flags for the check subcommand.
type CheckOptions struct {
	Require featureRequirements `flag:"require" flagshort:"r" flagdescr:"Required features (see available features above)" flagrequired:"true" flagcustom:"true"`
	JSON    bool                `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CheckOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *CheckOptions) DefineRequire(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureRequirements)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *CheckOptions) DecodeRequire(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}

	return parseFeatureRequirements(s)
}

// CompleteRequire completes comma-separated feature names, case-insensitively,
// without suggesting features already typed.
func (o *CheckOptions) CompleteRequire(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	prefix := ""
	current := toComplete
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		prefix = toComplete[:i+1]
		current = toComplete[i+1:]
	}

	selected := make(map[string]struct{})
	for _, part := range strings.Split(prefix, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			selected[name] = struct{}{}
		}
	}

	current = strings.ToLower(current)
	var candidates []string
	for _, name := range cpufeatures.FeatureNames() {
		if _, ok := selected[name]; ok {
			continue
		}
		if strings.HasPrefix(name, current) {
			candidates = append(candidates, prefix+name)
		}
	}
	return candidates, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

func checkCmd(logger func() *zap.Logger, detectorOpts []cpufeatures.DetectorOption) *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check specific CPU feature requirements",
		Long:  checkLongDescription(),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			if len(opts.Require) == 0 {
				return fmt.Errorf("no features specified")
			}

			requirements := make(cpufeatures.FeatureGroup, 0, len(opts.Require))
			for _, f := range opts.Require {
				requirements = append(requirements, f)
			}

			r := newDetector(sourceNative, logger(), detectorOpts).Report()
			err := cpufeatures.CheckReport(r, requirements)
			if err != nil {
				var fe *cpufeatures.FeatureError
				if !errors.As(err, &fe) {
					return err
				}
				if opts.JSON {
					if err := printJSON(c.OutOrStdout(), map[string]any{
						"ok":      false,
						"feature": fe.Feature,
						"reason":  fe.Reason,
					}); err != nil {
						return err
					}
					return errRequirementsNotMet
				}
				fmt.Fprintf(c.ErrOrStderr(), "FAIL: %s: %s\n", fe.Feature, fe.Reason)
				return errRequirementsNotMet
			}

			if opts.JSON {
				return printJSON(c.OutOrStdout(), map[string]any{"ok": true})
			}
			fmt.Fprintln(c.OutOrStdout(), "OK: all requirements satisfied")
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// CompareOptions defines flags for the compare subcommand.
type CompareOptions struct {
	CPUInfo string `flag:"cpuinfo" flagdescr:"Path of the kernel cpuinfo file (Linux only, default /proc/cpuinfo)"`
	JSON    bool   `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CompareOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func compareCmd(logger func() *zap.Logger, detectorOpts []cpufeatures.DetectorOption) *cobra.Command {
	opts := &CompareOptions{}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare detected features with other detection sources",
		Long: `Compare the detected features with golang.org/x/sys/cpu,
github.com/klauspost/cpuid/v2 and, on Linux, the kernel's cpuinfo flags as
read directly and through github.com/shirou/gopsutil.

Disagreements are informational: sources differ in how much operating system
support they require before reporting a feature.`,
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			log := logger()
			fs := newDetector(sourceNative, log, detectorOpts).FeatureSet()
			return runCompare(c.OutOrStdout(), fs, referencesFor(c.Context(), opts.CPUInfo, log), opts.JSON)
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func referencesFor(ctx context.Context, cpuInfoPath string, log *zap.Logger) []crosscheck.Reference {
	refs := []crosscheck.Reference{crosscheck.XSysCPU(), crosscheck.KlauspostCPUID()}
	if ref, err := crosscheck.ProcCPUInfo(cpuInfoPath); err != nil {
		log.Debug("skipping kernel cpu flags", zap.Error(err))
	} else {
		refs = append(refs, ref)
	}
	if ref, err := crosscheck.Gopsutil(ctx); err != nil {
		log.Debug("skipping gopsutil cpu flags", zap.Error(err))
	} else {
		refs = append(refs, ref)
	}
	return refs
}

func runCompare(w io.Writer, fs cpufeatures.FeatureSet, refs []crosscheck.Reference, asJSON bool) error {
	mismatches := crosscheck.Compare(fs, refs...)

	if asJSON {
		sources := make([]string, 0, len(refs))
		for _, ref := range refs {
			sources = append(sources, ref.Name())
		}
		lines := make([]string, 0, len(mismatches))
		for _, m := range mismatches {
			lines = append(lines, m.String())
		}
		return printJSON(w, map[string]any{
			"sources":    sources,
			"mismatches": lines,
		})
	}

	if len(mismatches) == 0 {
		fmt.Fprintf(w, "OK: %d reference sources agree\n", len(refs))
		return nil
	}
	for _, m := range mismatches {
		fmt.Fprintln(w, m)
	}
	return nil
}

// VersionOptions defines flags for the version subcommand.
type VersionOptions struct {
	JSON bool `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *VersionOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

// versionOutput is the JSON shape of the version subcommand.
type versionOutput struct {
	Version string              `json:"version"`
	Commit  string              `json:"commit,omitempty"`
	Date    string              `json:"date,omitempty"`
	OS      string              `json:"os"`
	CPU     crosscheck.HostInfo `json:"cpu"`
}

func versionCmd() *cobra.Command {
	opts := &VersionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show tool version, operating system and processor",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			host := crosscheck.Host()

			if opts.JSON {
				v := version
				if v == "" {
					v = "dev"
				}
				return printJSON(out, versionOutput{
					Version: v,
					Commit:  commit,
					Date:    date,
					OS:      osRelease(),
					CPU:     host,
				})
			}

			if version != "" {
				fmt.Fprintf(out, "cpufeatures %s", version)
				if commit != "" {
					fmt.Fprintf(out, " (%s)", commit)
				}
				if date != "" {
					fmt.Fprintf(out, " built %s", date)
				}
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, "cpufeatures (dev)")
			}

			fmt.Fprintf(out, "OS: %s\n", osRelease())

			if host.Brand != "" {
				fmt.Fprintf(out, "CPU: %s (%s, family %d model %d stepping %d)\n",
					host.Brand, host.Vendor, host.Family, host.Model, host.Stepping)
				fmt.Fprintf(out, "Cores: %d physical, %d logical\n", host.PhysicalCores, host.LogicalCores)
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func availableFeatures() string {
	return strings.Join(cpufeatures.FeatureNames(), ", ")
}

func checkLongDescription() string {
	return fmt.Sprintf(`Check that the processor supports all required features.
Exits with code 0 if all requirements are met, 1 if any are missing.

Available features:
%s`, formatWrappedList(cpufeatures.FeatureNames(), "  ", 80))
}

func formatWrappedList(items []string, indent string, maxWidth int) string {
	if len(items) == 0 {
		return indent + "(none)"
	}

	lines := make([]string, 0, len(items))
	line := indent
	for i, item := range items {
		token := item
		if i < len(items)-1 {
			token += ", "
		}

		if len(line)+len(token) > maxWidth && line != indent {
			lines = append(lines, strings.TrimRight(line, " "))
			line = indent + token
			continue
		}

		line += token
	}

	lines = append(lines, strings.TrimRight(line, " "))
	return strings.Join(lines, "\n")
}

type featureRequirements []cpufeatures.Feature

var featureIdentifierMap = func() map[cpufeatures.Feature][]string {
	ids := make(map[cpufeatures.Feature][]string, len(cpufeatures.FeatureValues()))
	for _, f := range cpufeatures.FeatureValues() {
		ids[f] = []string{f.String()}
	}
	return ids
}()

func (r *featureRequirements) String() string {
	names := make([]string, 0, len(*r))
	for _, f := range *r {
		names = append(names, f.String())
	}

	return strings.Join(names, ",")
}

func (r *featureRequirements) Set(input string) error {
	features, err := parseFeatureRequirements(input)
	if err != nil {
		return err
	}

	*r = append(*r, features...)
	return nil
}

func (r *featureRequirements) Type() string {
	return "feature"
}

func parseFeatureRequirements(input string) (featureRequirements, error) {
	if strings.TrimSpace(input) == "" {
		return featureRequirements{}, nil
	}

	parts := strings.Split(input, ",")
	features := make(featureRequirements, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		var feature cpufeatures.Feature
		enumValue := enumflag.New(&feature, "cpufeatures.Feature", featureIdentifierMap, enumflag.EnumCaseInsensitive)
		if err := enumValue.Set(name); err != nil {
			return nil, fmt.Errorf("unknown feature: %q (available: %s)", name, availableFeatures())
		}

		features = append(features, feature)
	}

	return features, nil
}
