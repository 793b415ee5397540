// Package simulation drives a configured network through a scripted
// scenario and records what happened.
//
// An Engine builds the layers, the signal bus, the growth manager and the
// run store from a config.Config. Run then plays a Scenario tick by tick:
// scripted stimuli and growth requests are applied, every neuron summates
// the signals buffered for the tick, the bus is settled, growth advances,
// memories are forgotten on the configured cadence and layer snapshots are
// written to the store.
//
// Usage:
//
//	sc, err := simulation.LoadScenario("scenario.yaml")
//	eng, err := simulation.NewEngine(cfg, simulation.WithLogger(logger))
//	defer eng.Close()
//	res, err := eng.Run(ctx, sc, 0)
package simulation
