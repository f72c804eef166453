package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vsariola/chiptone"
	"gopkg.in/yaml.v3"
)

// pattern is what a song file decodes to: a tracker song, or a sequencer grid
// when it has cells instead of tracks.
type pattern struct {
	song *chiptone.Song
	grid *chiptone.SequencerGrid
}

type probe struct {
	Tracks []yaml.Node `yaml:"tracks"`
	Cells  []yaml.Node `yaml:"cells"`
}

func readPattern(filename string) (pattern, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return pattern{}, fmt.Errorf("could not read file %v: %v", filename, err)
	}
	var p probe
	// yaml is a superset of json, so probing with yaml covers both
	if err := yaml.Unmarshal(data, &p); err != nil {
		return pattern{}, fmt.Errorf("could not parse %v: %v", filename, err)
	}
	if len(p.Cells) > 0 && len(p.Tracks) == 0 {
		grid, err := chiptone.UnmarshalGrid(data)
		if err != nil {
			return pattern{}, fmt.Errorf("could not parse grid %v: %v", filename, err)
		}
		return pattern{grid: &grid}, nil
	}
	song, err := chiptone.UnmarshalSong(data)
	if err != nil {
		return pattern{}, fmt.Errorf("could not parse song %v: %v", filename, err)
	}
	return pattern{song: &song}, nil
}

// expandArgs replaces directories with the .yml and .json files in them.
func expandArgs(args []string) ([]string, error) {
	var files []string
	for _, param := range args {
		info, err := os.Stat(param)
		if err != nil || !info.IsDir() {
			files = append(files, param)
			continue
		}
		for _, ext := range []string{"*.yml", "*.yaml", "*.json"} {
			found, err := filepath.Glob(filepath.Join(param, ext))
			if err != nil {
				return nil, fmt.Errorf("could not glob the path %v: %v", param, err)
			}
			files = append(files, found...)
		}
	}
	return files, nil
}

// output writes contents next to filename (or into directory), replacing the
// extension. With toStdout set, contents goes to standard output instead.
func output(filename, directory, extension string, contents []byte, toStdout bool) error {
	if toStdout {
		_, err := os.Stdout.Write(contents)
		return err
	}
	dir, name := filepath.Split(filename)
	if directory != "" {
		dir = directory
	}
	if dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create output directory %v: %v", dir, err)
		}
	}
	f := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+extension)
	if err := os.WriteFile(f, contents, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %v", f, err)
	}
	return nil
}
