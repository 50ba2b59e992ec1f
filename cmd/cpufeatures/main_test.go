package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/leodido/cpufeatures"
	"github.com/leodido/cpufeatures/internal/crosscheck"
	"github.com/spf13/cobra"
)

func TestParseFeatureRequirements_CaseInsensitive(t *testing.T) {
	got, err := parseFeatureRequirements(" AVX2, fma, SSE4.1 ")
	if err != nil {
		t.Fatalf("parseFeatureRequirements() error = %v", err)
	}

	want := featureRequirements{
		cpufeatures.FeatureAVX2,
		cpufeatures.FeatureFMA,
		cpufeatures.FeatureSSE41,
	}

	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseFeatureRequirements_UnknownFeature(t *testing.T) {
	_, err := parseFeatureRequirements("mmx")
	if err == nil {
		t.Fatal("parseFeatureRequirements(mmx) expected error")
	}

	msg := err.Error()
	if !strings.Contains(msg, `unknown feature: "mmx"`) {
		t.Fatalf("error %q missing unknown feature context", msg)
	}
	if !strings.Contains(msg, "available:") {
		t.Fatalf("error %q missing available features", msg)
	}
}

func TestParseFeatureRequirements_Empty(t *testing.T) {
	got, err := parseFeatureRequirements("  ")
	if err != nil {
		t.Fatalf("parseFeatureRequirements() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestFeatureRequirementsString(t *testing.T) {
	r := featureRequirements{
		cpufeatures.FeatureFMA,
		cpufeatures.FeatureAVX512,
	}
	if got, want := r.String(), "fma,avx512"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestFeatureRequirementsSet_Appends(t *testing.T) {
	var r featureRequirements
	if err := r.Set("sse2"); err != nil {
		t.Fatal(err)
	}
	if err := r.Set("avx,abm"); err != nil {
		t.Fatal(err)
	}
	if got, want := r.String(), "sse2,avx,abm"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if r.Type() != "feature" {
		t.Fatalf("Type() = %q", r.Type())
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		input   string
		want    sourceKind
		wantErr bool
	}{
		{"", sourceNative, false},
		{"native", sourceNative, false},
		{"TARGET", sourceTarget, false},
		{"emulated", sourceNative, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSource(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSource(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("parseSource(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCheckLongDescription_UsesFeatureNames(t *testing.T) {
	desc := checkLongDescription()
	if !strings.Contains(desc, "Available features:") {
		t.Fatalf("checkLongDescription() missing header: %q", desc)
	}

	for _, name := range cpufeatures.FeatureNames() {
		if !strings.Contains(desc, name) {
			t.Fatalf("checkLongDescription() missing feature %q", name)
		}
	}
}

func TestFormatWrappedList(t *testing.T) {
	if got := formatWrappedList(nil, "  ", 80); got != "  (none)" {
		t.Errorf("formatWrappedList(nil) = %q", got)
	}

	got := formatWrappedList([]string{"aaaa", "bbbb", "cccc"}, "  ", 14)
	want := "  aaaa, bbbb,\n  cccc"
	if got != want {
		t.Errorf("formatWrappedList() = %q, want %q", got, want)
	}
}

func TestCheckOptionsCompleteRequire(t *testing.T) {
	opts := &CheckOptions{}

	t.Run("empty input returns feature candidates", func(t *testing.T) {
		got, directive := opts.CompleteRequire(nil, nil, "")
		if len(got) != len(cpufeatures.FeatureNames()) {
			t.Fatalf("got %d candidates, want %d", len(got), len(cpufeatures.FeatureNames()))
		}
		if got[0] != cpufeatures.FeatureNames()[0] {
			t.Fatalf("first candidate = %q, want %q", got[0], cpufeatures.FeatureNames()[0])
		}
		if directive != cobra.ShellCompDirectiveNoFileComp|cobra.ShellCompDirectiveNoSpace {
			t.Fatalf("directive = %v, want %v", directive, cobra.ShellCompDirectiveNoFileComp|cobra.ShellCompDirectiveNoSpace)
		}
	})

	t.Run("prefix filter is case-insensitive", func(t *testing.T) {
		got, _ := opts.CompleteRequire(nil, nil, "SSE4")
		want := []string{"sse4.1", "sse4.2"}
		if strings.Join(got, " ") != strings.Join(want, " ") {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
	})

	t.Run("comma-separated completion prefixes and avoids duplicates", func(t *testing.T) {
		got, _ := opts.CompleteRequire(nil, nil, "AVX,av")
		if len(got) == 0 {
			t.Fatal("expected comma-separated candidates")
		}
		for _, c := range got {
			if !strings.HasPrefix(c, "AVX,") {
				t.Fatalf("candidate %q missing expected prefix", c)
			}
			if strings.EqualFold(c, "AVX,avx") {
				t.Fatalf("duplicate selected feature suggested: %q", c)
			}
		}
	})
}

func TestNewProbeOutput(t *testing.T) {
	r := cpufeatures.Report{Features: cpufeatures.FeatureSet{HasSSE2: true}}

	out := newProbeOutput(r, false)
	names := cpufeatures.FeatureNames()
	if len(out.Features) != len(names) {
		t.Fatalf("Features has %d entries, want %d", len(out.Features), len(names))
	}
	for i, fs := range out.Features {
		if fs.Name != names[i] {
			t.Errorf("Features[%d].Name = %q, want %q", i, fs.Name, names[i])
		}
		if fs.Present != (fs.Name == "sse2") {
			t.Errorf("Features[%d] = %+v", i, fs)
		}
	}
	if out.Raw != nil {
		t.Fatal("Raw should be omitted")
	}

	data, err := json.Marshal(newProbeOutput(r, true))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.HasPrefix(got, `{"features":[{"name":"sse2","present":true},{"name":"sse3","present":false}`) {
		t.Fatalf("features not in report order: %s", got)
	}
	if !strings.Contains(got, `"maxLeaf":0`) || !strings.Contains(got, `"sse4.1":false`) {
		t.Fatalf("raw output missing lower-case keys: %s", got)
	}
}

func TestRunCompare(t *testing.T) {
	fs := cpufeatures.FeatureSet{HasSSE2: true}

	t.Run("agreement", func(t *testing.T) {
		var buf bytes.Buffer
		if err := runCompare(&buf, fs, nil, false); err != nil {
			t.Fatal(err)
		}
		if got := buf.String(); got != "OK: 0 reference sources agree\n" {
			t.Fatalf("output = %q", got)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := runCompare(&buf, fs, []crosscheck.Reference{crosscheck.XSysCPU()}, true); err != nil {
			t.Fatal(err)
		}
		var decoded map[string][]string
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON %q: %v", buf.String(), err)
		}
		if len(decoded["sources"]) != 1 || decoded["sources"][0] != "x/sys/cpu" {
			t.Fatalf("sources = %v", decoded["sources"])
		}
	})
}

// fakeQuerier answers leaf queries from a fixed register image.
type fakeQuerier map[uint32]cpufeatures.Registers

func (q fakeQuerier) RawLeafQuery(leaf, _ uint32) cpufeatures.Registers { return q[leaf] }

type fakeMask uint64

func (m fakeMask) ReadExtendedStateMask() uint64 { return uint64(m) }

// sse2Only is a processor reporting leaf 1 with SSE and SSE2 only.
func sse2Only() []cpufeatures.DetectorOption {
	return []cpufeatures.DetectorOption{
		cpufeatures.WithQuerier(fakeQuerier{
			0: {EAX: 1},
			1: {EDX: 1<<25 | 1<<26},
		}),
		cpufeatures.WithStateMaskReader(fakeMask(0)),
	}
}

func execute(t *testing.T, args []string, opts ...cpufeatures.DetectorOption) (stdout, stderr string, err error) {
	t.Helper()

	var root *cobra.Command
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("newRootCmd() panicked: %v", r)
			}
		}()
		root = newRootCmd(opts...)
	}()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestNewRootCmd_DoesNotPanic(t *testing.T) {
	for i := 0; i < 2; i++ {
		_, _, err := execute(t, []string{"--help"})
		if err != nil {
			t.Fatalf("Execute(--help) error = %v", err)
		}
	}
}

func TestCheckCommand_RequireCompletion(t *testing.T) {
	out, _, err := execute(t, []string{cobra.ShellCompRequestCmd, "check", "--require", "AV"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"avx\n", "avx2\n", "avx512\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("completion output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "sse2") {
		t.Errorf("completion output %q contains non-matching feature", out)
	}
}

func TestCheckCommand_MissingFeature(t *testing.T) {
	out, errOut, err := execute(t, []string{"check", "--require", "sse2,avx2"}, sse2Only()...)
	if !errors.Is(err, errRequirementsNotMet) {
		t.Fatalf("Execute() error = %v, want errRequirementsNotMet", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}
	if !strings.HasPrefix(errOut, "FAIL: avx2: ") {
		t.Errorf("stderr = %q, want FAIL: avx2: <reason>", errOut)
	}
	if !strings.Contains(errOut, "CPUID.1:ECX[28]") {
		t.Errorf("stderr = %q, want register-level reason", errOut)
	}
}

func TestCheckCommand_MissingFeatureJSON(t *testing.T) {
	out, _, err := execute(t, []string{"check", "--require", "fma", "--json"}, sse2Only()...)
	if !errors.Is(err, errRequirementsNotMet) {
		t.Fatalf("Execute() error = %v, want errRequirementsNotMet", err)
	}

	var decoded struct {
		OK      bool   `json:"ok"`
		Feature string `json:"feature"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if decoded.OK || decoded.Feature != "fma" || decoded.Reason == "" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestCheckCommand_Satisfied(t *testing.T) {
	out, errOut, err := execute(t, []string{"check", "--require", "SSE2"}, sse2Only()...)
	if err != nil {
		t.Fatalf("Execute() error = %v (stderr %q)", err, errOut)
	}
	if out != "OK: all requirements satisfied\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestProbeCommand_FakeProcessor(t *testing.T) {
	out, _, err := execute(t, []string{"probe"}, sse2Only()...)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := cpufeatures.FeatureSet{HasSSE2: true}.String()
	if out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
}

func TestProbeCommand(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"probe"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	names := cpufeatures.FeatureNames()
	if len(lines) != len(names) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(names), buf.String())
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, names[i]+": ") {
			t.Errorf("line %d = %q, want prefix %q", i, line, names[i]+": ")
		}
		if !strings.HasSuffix(line, "true") && !strings.HasSuffix(line, "false") {
			t.Errorf("line %d = %q, want true|false", i, line)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "cpufeatures (dev)\nOS: ") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	out, _, err := execute(t, []string{"version", "--json"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var decoded struct {
		Version string              `json:"version"`
		OS      string              `json:"os"`
		CPU     crosscheck.HostInfo `json:"cpu"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if decoded.Version != "dev" {
		t.Errorf("version = %q, want dev", decoded.Version)
	}
	if decoded.OS == "" {
		t.Error("os is empty")
	}
	if decoded.CPU != crosscheck.Host() {
		t.Errorf("cpu = %+v, want %+v", decoded.CPU, crosscheck.Host())
	}
}
