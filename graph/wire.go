package graph

import (
	"encoding/json"

	"github.com/opencompleter/completer/datum"
)

// stageWireResult is the JSON envelope a configured StageInvoker's
// response body is expected to carry: either a success value or a
// structured error, mirroring the Result sum type on the wire. The
// closure body itself is never serialized — closures in this rewrite are
// native Go functions, not portable blobs, so a configured StageInvoker
// is only handed the accumulated inputs; it is expected to already know
// which code to run for the stage it is asked to invoke.
type stageWireResult struct {
	Success bool             `json:"success"`
	Value   *datum.Datum     `json:"value,omitempty"`
	Error   *datum.ErrorInfo `json:"error,omitempty"`
}

// encodeStageInputs marshals a combinator's accumulated input Results
// into the body of the request handed to StageInvoker.InvokeStage.
func encodeStageInputs(inputs []datum.Result) ([]byte, error) {
	wire := make([]stageWireResult, len(inputs))
	for i, r := range inputs {
		if r.IsSuccess() {
			v := r.Value()
			wire[i] = stageWireResult{Success: true, Value: &v}
			continue
		}
		e := r.Error()
		wire[i] = stageWireResult{Error: e.Error}
	}
	return json.Marshal(wire)
}

// decodeStageResult unmarshals a StageInvoker response body into a
// Result.
func decodeStageResult(body []byte) (datum.Result, error) {
	var wire stageWireResult
	if err := json.Unmarshal(body, &wire); err != nil {
		return datum.Result{}, err
	}
	if wire.Success {
		if wire.Value == nil {
			return datum.Succeeded(datum.NewEmpty()), nil
		}
		return datum.Succeeded(*wire.Value), nil
	}
	if wire.Error == nil {
		return datum.FailedWith(datum.ErrUnknown, "stage invoker response carried no error detail"), nil
	}
	return datum.FailedWith(wire.Error.Kind, wire.Error.Message), nil
}
