// File: internal/cdp/eval.go
package cdp

import (
	"context"

	json "github.com/json-iterator/go"
)

// RemoteObject is the nested result.result member of a Runtime.evaluate
// response. Value stays raw so "value present" and "value absent" remain
// distinguishable; an evaluated `undefined` carries no value member at all.
type RemoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
	Description string          `json:"description,omitempty"`
}

const (
	subtypeNode  = "node"
	subtypeError = "error"
)

// EvalJS evaluates a script in the target and returns the remote object
// describing its completion value.
func (c *Channel) EvalJS(ctx context.Context, script string) (RemoteObject, error) {
	resp, err := c.RunCommand(ctx, Command{
		Method: "Runtime.evaluate",
		Params: map[string]any{"expression": script},
	})
	if err != nil {
		return RemoteObject{}, err
	}

	var payload struct {
		Result RemoteObject `json:"result"`
	}
	if err := json.Unmarshal(resp.Result, &payload); err != nil {
		return RemoteObject{}, &ProtocolError{Op: "decode evaluate result", Err: err}
	}
	return payload.Result, nil
}

// EvalValue evaluates a script and interprets the remote object:
//
//   - a plain value: returned as-is, already type-decoded (string, float64,
//     bool, nil, map, slice);
//   - a DOM node: its object id is returned, usable as a handle in later
//     protocol calls;
//   - a script error: surfaced as *JSError with the engine's description;
//   - anything else: surfaced as *UnknownResultError carrying the raw JSON.
func (c *Channel) EvalValue(ctx context.Context, script string) (any, error) {
	obj, err := c.EvalJS(ctx, script)
	if err != nil {
		return nil, err
	}

	if len(obj.Value) > 0 {
		var v any
		if err := json.Unmarshal(obj.Value, &v); err != nil {
			return nil, &ProtocolError{Op: "decode value", Err: err}
		}
		return v, nil
	}

	switch obj.Subtype {
	case subtypeNode:
		return obj.ObjectID, nil
	case subtypeError:
		return nil, &JSError{Description: obj.Description}
	}

	raw, _ := json.MarshalToString(obj)
	return nil, &UnknownResultError{Raw: raw}
}
