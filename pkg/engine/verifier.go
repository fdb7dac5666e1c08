package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/merge"
)

// CheckResult is the outcome of one verification check.
type CheckResult struct {
	// Kind names the check: package-present, file-content, or a
	// module-declared check kind.
	Kind string `json:"kind"`

	// Module is the catalog module id, when the check belongs to one.
	Module string `json:"module,omitempty"`

	// Subject is what was checked: a package id or a file path.
	Subject string `json:"subject"`

	// Pass is whether the check passed.
	Pass bool `json:"pass"`

	// Reason is the human-readable explanation.
	Reason string `json:"reason"`
}

// VerifyReport is the full result of a verification pass.
type VerifyReport struct {
	// Checks are the per-intent results, in graph order.
	Checks []CheckResult `json:"checks"`

	// Passed is the number of passing checks.
	Passed int `json:"passed"`

	// Failed is the number of failing checks.
	Failed int `json:"failed"`
}

// Ok reports whether every check passed.
func (r *VerifyReport) Ok() bool {
	return r.Failed == 0
}

// Verifier runs read-only post-apply checks against the live machine.
// It never mutates state; a failing report signals through the exit
// code, not through an engine error.
type Verifier struct {
	fsys      afero.Fs
	installer Installer
}

// NewVerifier creates a verifier.
func NewVerifier(fsys afero.Fs, installer Installer) *Verifier {
	return &Verifier{fsys: fsys, installer: installer}
}

// Verify checks every intent in the graph: packages must be present,
// restore targets must hold exactly the post-merge content, and
// module-declared checks must hold.
func (v *Verifier) Verify(ctx context.Context, graph *Graph) (*VerifyReport, error) {
	installed, err := v.installer.Query(ctx)
	if err != nil {
		return nil, NewInternalError("install capability query failed", err)
	}
	installedSet := make(map[string]bool, len(installed))
	for _, pkg := range installed {
		installedSet[pkg] = true
	}

	report := &VerifyReport{}

	for _, intent := range graph.Installs {
		check := CheckResult{Kind: "package-present", Subject: intent.Package}
		if installedSet[intent.Package] {
			check.Pass = true
			check.Reason = "package is installed"
		} else {
			check.Reason = "package is not installed"
		}
		report.add(check)
	}

	for _, intent := range graph.Restores {
		report.add(v.checkRestore(intent))
	}

	for _, intent := range graph.Verifies {
		report.add(v.checkCustom(intent))
	}

	return report, nil
}

// checkRestore verifies that a restore target holds the content the
// merge strategy would produce, by running the strategy in a dry pass
// and comparing fingerprints.
func (v *Verifier) checkRestore(intent RestoreIntent) CheckResult {
	check := CheckResult{Kind: "file-content", Module: intent.Module, Subject: intent.Target}

	source := intent.Content
	if source == nil {
		data, err := afero.ReadFile(v.fsys, intent.Source)
		if err != nil {
			check.Reason = "restore payload unreadable: " + err.Error()
			return check
		}
		source = data
	}

	current, err := afero.ReadFile(v.fsys, intent.Target)
	if err != nil {
		check.Reason = "target file is missing"
		return check
	}

	desired, err := merge.Apply(intent.Strategy, current, source)
	if err != nil {
		check.Reason = "merge dry pass failed: " + err.Error()
		return check
	}

	if HashBytes(current) == HashBytes(desired) {
		check.Pass = true
		check.Reason = "target content matches desired state"
	} else {
		check.Reason = "target content does not match desired state"
	}
	return check
}

// checkCustom runs one module-declared check.
func (v *Verifier) checkCustom(intent VerifyIntent) CheckResult {
	check := CheckResult{Kind: intent.Kind, Module: intent.Module, Subject: intent.Path}

	data, err := afero.ReadFile(v.fsys, intent.Path)
	switch intent.Kind {
	case "file-exists":
		if err != nil {
			check.Reason = "file does not exist"
			return check
		}
		check.Pass = true
		check.Reason = "file exists"
	case "file-contains":
		if err != nil {
			check.Reason = "file does not exist"
			return check
		}
		if bytes.Contains(data, []byte(intent.Contains)) {
			check.Pass = true
			check.Reason = fmt.Sprintf("file contains %q", intent.Contains)
		} else {
			check.Reason = fmt.Sprintf("file does not contain %q", intent.Contains)
		}
	default:
		check.Reason = fmt.Sprintf("unknown check kind %q", intent.Kind)
	}
	return check
}

func (r *VerifyReport) add(check CheckResult) {
	r.Checks = append(r.Checks, check)
	if check.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}
