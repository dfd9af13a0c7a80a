// Package workflow implements the agent pipeline orchestration engine.
//
// A task description is classified into a TaskType, the TaskType selects an
// ordered pipeline of stage names, and the Engine drives the registered stage
// handlers through that pipeline either sequentially or in ordered parallel
// groups. Every state transition is recorded in the WorkflowContext and the
// context is snapshotted through a SnapshotStore after each transition, so an
// interrupted run can be resumed from the first unfinished stage.
//
// Domain agents (Figma readers, commerce search, report generators, ...) are
// external to this package: they plug in through the Handler contract on the
// Registry and never touch the WorkflowContext directly.
package workflow
