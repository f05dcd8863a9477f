package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString distinguishes an absent JSON member from an explicit null
// in PATCH bodies. Present is false when the member was absent; Value is nil
// for null.
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON only runs for members present in the document.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}
