// Package handlers provides the built-in scene commands served by editormcp.
//
// Every handler answers with the legacy envelope: {"status":"success",
// "result":{...}} or {"status":"error","message":"..."}. The dispatcher
// wraps the same envelope into a content array for tools/call.
package handlers

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Success wraps result in a success envelope. A nil result is omitted.
func Success(result map[string]any) map[string]any {
	resp := map[string]any{"status": StatusSuccess}
	if result != nil {
		resp["result"] = result
	}
	return resp
}

// Error returns an error envelope carrying message.
func Error(message string) map[string]any {
	return map[string]any{"status": StatusError, "message": message}
}

// Errorf formats an error envelope.
func Errorf(format string, args ...any) map[string]any {
	return Error(fmt.Sprintf(format, args...))
}

// decodeParams copies params into out, a pointer to a struct with
// mapstructure tags. Numbers arrive as json.Number; scalars are converted
// loosely (a numeric actor name still decodes as a string).
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}
