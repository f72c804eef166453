package chiptone

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalSong parses a song from .json or .yml contents.
func UnmarshalSong(data []byte) (Song, error) {
	song, err := unmarshalJSONOrYAML[Song](data)
	if err != nil {
		return Song{}, fmt.Errorf("the song could not be parsed: %w", err)
	}
	return song, nil
}

// UnmarshalGrid parses a sequencer grid from .json or .yml contents. Pitches
// default to DefaultPitches and Steps to DefaultSequencerSteps.
func UnmarshalGrid(data []byte) (SequencerGrid, error) {
	grid, err := unmarshalJSONOrYAML[SequencerGrid](data)
	if err != nil {
		return SequencerGrid{}, fmt.Errorf("the grid could not be parsed: %w", err)
	}
	if len(grid.Pitches) == 0 {
		grid.Pitches = DefaultPitches()
	}
	if grid.Steps == 0 {
		grid.Steps = DefaultSequencerSteps
	}
	grid.sortCells()
	return grid, nil
}

// UnmarshalSoundEffect parses sound effect parameters from .json or .yml
// contents.
func UnmarshalSoundEffect(data []byte) (SoundEffectParameters, error) {
	p, err := unmarshalJSONOrYAML[SoundEffectParameters](data)
	if err != nil {
		return SoundEffectParameters{}, fmt.Errorf("the sound effect could not be parsed: %w", err)
	}
	return p, nil
}

// MarshalSong encodes a song as YAML.
func MarshalSong(song *Song) ([]byte, error) {
	return yaml.Marshal(song)
}

// unmarshalJSONOrYAML tries json first and falls back to yaml. Each attempt
// decodes into its own zero value.
func unmarshalJSONOrYAML[T any](data []byte) (T, error) {
	var fromJSON T
	errJSON := json.Unmarshal(data, &fromJSON)
	if errJSON == nil {
		return fromJSON, nil
	}
	var fromYAML T
	if errYaml := yaml.Unmarshal(data, &fromYAML); errYaml != nil {
		var zero T
		return zero, fmt.Errorf("not .json (%v) or .yml (%w)", errJSON, errYaml)
	}
	return fromYAML, nil
}
