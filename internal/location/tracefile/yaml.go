package tracefile

import (
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v2"
)

// ErrEmptyTrack indicates the track contains no fixes.
var ErrEmptyTrack = errors.New("tracefile: track contains no fixes")

// FromYAML constructs a new Provider using data from r to define the track.
// r should provide raw YAML data.
func FromYAML(r io.Reader, loop bool) (*Provider, error) {
	var entries []Entry
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&entries); err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, ErrEmptyTrack
	}

	return NewProvider(entries, loop), nil
}

// FromYAMLFile constructs a new Provider using data from the YAML file at path.
func FromYAMLFile(path string, loop bool) (*Provider, error) {
	if path == "" {
		return nil, errors.New("tracefile: path cannot be empty")
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return FromYAML(fh, loop)
}
