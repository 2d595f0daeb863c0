// Package sim assembles the battery model, the charging controller, the
// adaptive controller, the health tracker and the recent history into a
// SimulationContext owned by the caller.
//
// A SimulationContext holds all simulation state; there are no package
// level singletons. It is not safe for concurrent use: the host scheduler
// serialises ticks and commands.
package sim
