package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// output writes command results either as aligned text or as a YAML
// document.
type output struct {
	w    io.Writer
	yaml bool
}

func newOutput(w io.Writer, format string) (*output, error) {
	switch format {
	case "text", "":
		return &output{w: w}, nil
	case "yaml":
		return &output{w: w, yaml: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// emit writes v as YAML, or calls text to print it.
func (o *output) emit(v any, text func(w io.Writer)) error {
	if !o.yaml {
		text(o.w)
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	_, err = o.w.Write(data)
	return err
}
