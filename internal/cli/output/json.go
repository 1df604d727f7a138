package output

import (
	"encoding/json"
	"io"
	"reflect"
)

// JSONFormatter formats data as JSON.
type JSONFormatter struct {
	// Lines writes compact JSON lines instead of one indented document:
	// one line per element for slices, one line otherwise. Streams such
	// as watch use it so every event can be parsed as it arrives.
	Lines bool
}

// Format writes data to w.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if !f.Lines {
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice || v.IsNil() {
		return enc.Encode(data)
	}
	for i := 0; i < v.Len(); i++ {
		if err := enc.Encode(v.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}
