// Package workflow holds the Temporal rendition of the batch evaluation
// orchestrator.
//
// BatchEvaluationWorkflow fans one submit activity out per request descriptor
// and records settlements in completion order. ConvergenceWorkflow polls the
// result store for one input on a durable timer until every requested metric
// has a result.
//
// Workflow code runs on Temporal's cooperative scheduler: one coroutine runs
// at a time and switches only at blocking workflow calls, so the shared batch
// state is mutated without locks. Workflows must stay deterministic; all I/O
// goes through activities.
package workflow
