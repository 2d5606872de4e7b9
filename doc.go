// Package certflow provides a durable workflow orchestration engine for
// certification-preparation pipelines: an assessment is generated, deployed
// to an external form service, the instance suspends while the learner
// completes the form on their own schedule, and a later resume call carries
// the results through gap analysis and content generation.
//
// Certflow is designed as a library, not a service. Import it, configure a
// store and the external adapters, and drive instances through the
// orchestrator. The cmd/certflowd binary wraps the library in an HTTP
// surface for deployments that want one.
//
// # Architecture
//
// Each subsystem lives in its own package: instance (the durable state
// record and its store contract), stage (the step registry), supervisor
// (bounded retry with compensation), gap (the scoring engine), adapter
// (external collaborator boundaries), and orchestrator (the state machine
// driver). A single backend implements the store contract; memory and
// postgres implementations ship in store/.
//
// All entity IDs are TypeIDs: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package certflow
