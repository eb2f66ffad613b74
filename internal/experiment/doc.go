// Package experiment manages campaign A/B/n tests: variant definitions,
// per-event outcome recording, and two-proportion significance testing.
//
// The statistics here are simplified approximations suitable for triage, not
// clinical-trial-grade analysis: required sample size comes from a reduced
// power formula with configurable baseline and improvement assumptions, and
// p-values come from a pooled two-proportion z-test. A declared winner is
// terminal — re-analysis never overwrites a prior winner.
package experiment
