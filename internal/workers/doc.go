// Package workers implements the content pipeline workers and BlogMaster.
//
// Each worker satisfies stage.Worker: it reads what earlier workers produced
// from stage.Input.Artifacts, talks to the record store and external
// adapters, and reports a stage.Result. Adapter failures never escape a
// worker; they become failed results. In test mode no adapter is called and
// workers produce deterministic placeholder artifacts.
package workers
