// Package preflight provides readiness checks for the filesystem paths,
// binaries, and provider APIs that mailreel depends on.
//
// These checks run in two contexts:
//   - The CLI "mailreel health" command prints every result and exits non-zero
//     when a required check fails.
//   - The HTTP API serves StageHealth on /health/pipeline so operators can see
//     which stages will degrade to their fallbacks.
//
// Provider checks are optional: callers pass the clients they built so this
// package stays free of provider wiring.
package preflight
