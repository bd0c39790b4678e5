package cli

import (
	"testing"

	"github.com/enprot/enprot/internal/driver"
)

func TestFillMissingPasswordsSkipsSuppliedKeys(t *testing.T) {
	got, err := fillMissingPasswords(
		[]string{"Agent_007=password"},
		[][]string{{"Agent_007"}},
		nil,
	)
	if err != nil {
		t.Fatalf("fillMissingPasswords: %v", err)
	}
	if len(got) != 1 || got[0] != "Agent_007=password" {
		t.Fatalf("expected no prompting for a supplied key, got %v", got)
	}
}

func TestFillMissingPasswordsDedupesAcrossGroups(t *testing.T) {
	got, err := fillMissingPasswords(
		[]string{"Agent_007=password"},
		[][]string{{"Agent_007"}},
		[][]string{{"Agent_007"}},
	)
	if err != nil {
		t.Fatalf("fillMissingPasswords: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the same region listed in two groups not to prompt twice, got %v", got)
	}
}

func TestOutputPathPrefersExplicitOutput(t *testing.T) {
	ops := &driver.ParseOps{Output: "out.ept", Prefix: "enc-"}
	if got := outputPath(ops, "in.ept"); got != "out.ept" {
		t.Fatalf("expected explicit output to win, got %q", got)
	}
}

func TestOutputPathAppliesPrefix(t *testing.T) {
	ops := &driver.ParseOps{Prefix: "enc-"}
	if got := outputPath(ops, "dir/in.ept"); got != "dir/enc-in.ept" {
		t.Fatalf("expected prefixed path, got %q", got)
	}
}

func TestOutputPathDefaultsToInput(t *testing.T) {
	ops := &driver.ParseOps{}
	if got := outputPath(ops, "in.ept"); got != "in.ept" {
		t.Fatalf("expected input path unchanged, got %q", got)
	}
}
