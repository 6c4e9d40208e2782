// Package healer finds content pieces whose stored state is inconsistent
// with what the pipeline should have produced and, when asked, repairs them.
//
// A sweep is recorded as a pipeline run of type "data-healer" so operators
// see its log next to regular runs. A failed repair is reported as a
// PartialHealError and never stops the sweep.
package healer
