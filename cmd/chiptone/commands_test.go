package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vsariola/chiptone"
)

func TestParseParams(t *testing.T) {
	pairs := []string{"echo.delay=0.25", "echo.feedback=0.5", "robot.rate=40"}
	params, err := parseParams(pairs, "echo")
	if err != nil {
		t.Fatalf("parseParams failed: %v", err)
	}
	if len(params) != 2 || params["delay"] != 0.25 || params["feedback"] != 0.5 {
		t.Fatalf("unexpected params %v", params)
	}
	if _, err := parseParams([]string{"delay"}, ""); !errors.Is(err, chiptone.ErrInvalidParameter) {
		t.Fatalf("missing value should fail, got %v", err)
	}
	if _, err := parseParams([]string{"delay=soon"}, ""); !errors.Is(err, chiptone.ErrInvalidParameter) {
		t.Fatalf("non-numeric value should fail, got %v", err)
	}
}

func TestReadPattern(t *testing.T) {
	dir := t.TempDir()
	songFile := filepath.Join(dir, "song.yml")
	gridFile := filepath.Join(dir, "grid.json")
	os.WriteFile(songFile, []byte("bpm: 120\ntracks:\n  - slots: [C4, E4]\n"), 0644)
	os.WriteFile(gridFile, []byte(`{"bpm": 100, "steps": 8, "cells": [{"pitch": "C4", "step": 3}]}`), 0644)
	p, err := readPattern(songFile)
	if err != nil || p.song == nil || p.grid != nil {
		t.Fatalf("song file should read as a song: %+v %v", p, err)
	}
	p, err = readPattern(gridFile)
	if err != nil || p.grid == nil || !p.grid.IsActive("C4", 3) {
		t.Fatalf("grid file should read as a grid: %+v %v", p, err)
	}
	files, err := expandArgs([]string{dir})
	if err != nil || len(files) != 2 {
		t.Fatalf("expandArgs = %v, %v; want both files", files, err)
	}
}

func TestOutputReplacesExtension(t *testing.T) {
	dir := t.TempDir()
	if err := output(filepath.Join("songs", "tune.yml"), dir, ".wav", []byte("RIFF"), false); err != nil {
		t.Fatalf("output failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "tune.wav"))
	if err != nil || string(data) != "RIFF" {
		t.Fatalf("output not written: %q %v", data, err)
	}
}
