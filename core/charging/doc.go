// Package charging implements the charging phase controller. Phases move
// through a fixed transition table (none → cc → cv → trickle → none) held
// by a looplab/fsm machine; every transition closes the open phase record
// of the session and, while still charging, opens the next one.
//
// The controller also owns the separate discharging mode. Charging and
// discharging are mutually exclusive: entering one exits the other.
package charging
