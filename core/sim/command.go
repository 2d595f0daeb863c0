package sim

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/battsim/core/battery"
	"github.com/kilianp07/battsim/core/charging"
)

// Command actions understood by Apply.
const (
	ActionStartCharging      = "start_charging"
	ActionStartDischarging   = "start_discharging"
	ActionStop               = "stop"
	ActionStopCharging       = "stop_charging"
	ActionStopDischarging    = "stop_discharging"
	ActionUpdateParams       = "update_params"
	ActionUpdateChargingRate = "update_charging_params"
	ActionSetRULOptimization = "set_rul_optimization"
	ActionReset              = "reset"
	ActionRecalibrate        = "recalibrate"
)

// ErrUnknownAction is returned by Apply for unsupported actions.
var ErrUnknownAction = errors.New("sim: unknown action")

// Command is a request from a transport adapter.
type Command struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Result reports the outcome of a Command. OK is false for no-op requests
// such as stopping an idle pack.
type Result struct {
	Action    string `json:"action"`
	OK        bool   `json:"ok"`
	SessionID string `json:"session_id,omitempty"`
}

type rulToggle struct {
	Enabled bool `json:"enabled"`
}

type recalibration struct {
	Health float64 `json:"health"`
	Cycles float64 `json:"cycles"`
}

// Apply executes cmd. Errors are returned only for unknown actions or
// malformed parameters.
func (c *SimulationContext) Apply(cmd Command) (Result, error) {
	res := Result{Action: cmd.Action}
	switch cmd.Action {
	case ActionStartCharging:
		res.SessionID, res.OK = c.StartCharging()
	case ActionStartDischarging:
		res.OK = c.StartDischarging()
	case ActionStop:
		res.OK = c.Stop()
	case ActionStopCharging:
		res.OK = c.StopCharging()
	case ActionStopDischarging:
		res.OK = c.StopDischarging()
	case ActionUpdateParams:
		var u battery.ParamUpdate
		if err := decodeParams(cmd, &u); err != nil {
			return res, err
		}
		c.UpdateParams(u)
		res.OK = !u.Empty()
	case ActionUpdateChargingRate:
		var r charging.Rates
		if err := decodeParams(cmd, &r); err != nil {
			return res, err
		}
		c.ApplyRates(r)
		res.OK = true
	case ActionSetRULOptimization:
		var t rulToggle
		if err := decodeParams(cmd, &t); err != nil {
			return res, err
		}
		c.SetRULOptimization(t.Enabled)
		res.OK = true
	case ActionReset:
		c.Reset()
		res.OK = true
	case ActionRecalibrate:
		var r recalibration
		if err := decodeParams(cmd, &r); err != nil {
			return res, err
		}
		c.Recalibrate(r.Health, r.Cycles)
		res.OK = true
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return res, nil
}

func decodeParams(cmd Command, dst any) error {
	if len(cmd.Params) == 0 {
		return fmt.Errorf("%s: missing params", cmd.Action)
	}
	if err := json.Unmarshal(cmd.Params, dst); err != nil {
		return fmt.Errorf("%s: decode params: %w", cmd.Action, err)
	}
	return nil
}
