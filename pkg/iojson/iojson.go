// Package iojson reads and writes the JSON documents kiln commands accept
// and print.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
)

// fallbackError builds the error document by hand so a marshaling failure
// can still be reported as JSON.
func fallbackError(msg string, cause error) string {
	msgBytes, _ := json.Marshal(msg)
	errBytes, _ := json.Marshal(cause.Error())
	return fmt.Sprintf(`{"message":%s,"data":{"json_error":%s}}`, msgBytes, errBytes)
}

// WriteWith writes obj to w as indented JSON. If obj cannot be marshaled, an
// error document goes to ew instead and the result is nil.
func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		_, err = fmt.Fprintln(ew, fallbackError("cannot encode output", err))
		return err
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}
