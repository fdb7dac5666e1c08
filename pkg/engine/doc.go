// Package engine implements the state-reconciliation core.
//
// The pipeline has four stages:
//
//	Resolve -> Plan -> Execute -> Verify
//
// The resolver (pkg/manifest) produces a Graph: ordered install and
// restore intents with provenance. The Planner diffs the graph
// against an observed Snapshot and emits a Plan whose install steps
// all precede its restore steps; an empty plan means the machine is
// already converged. The Executor runs steps sequentially, backing up
// every file it overwrites, continuing past failures, and recording a
// RunRecord in the StateStore. The Verifier re-checks the live
// machine read-only.
//
// The Reverter addresses exactly one rollback generation: it replays
// the most recent run's backup entries in reverse order after
// fingerprint-checking them.
//
// Everything here is side-effect-free until the Executor commits, and
// the only external capability is the Installer contract. All file
// access goes through afero so the entire pipeline runs against an
// in-memory filesystem in tests.
package engine
