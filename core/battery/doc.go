// Package battery implements the electrical and thermal state model of the
// pack: a Thevenin equivalent circuit (OCV source, series resistance R0 and a
// parallel R1/C1 polarization branch) coupled to a lumped thermal mass whose
// temperature feeds back into the resistances.
//
// The model is advanced one tick at a time by Model.Tick and never performs
// I/O. It is not safe for concurrent use; callers serialise access.
package battery
