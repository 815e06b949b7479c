package config

import "strings"

// Position identifies one monitored camera angle.
type Position struct {
	// Code is the short name used in output file names, e.g. "tl".
	Code string
	// Hash is the opaque access identifier of the position's stream.
	Hash string
}

// Positions is the fixed set of camera angles archived on every run.
var Positions = []Position{
	{Code: "tl", Hash: "5b846d97b16e4e6e88256232bf75aff9"},
	{Code: "bl", Hash: "40d91efdfb344b829e6fa37f3c9ab3b7"},
	{Code: "ce", Hash: "45caeddc667940d28056f5e13d0e73c1"},
	{Code: "tr", Hash: "0b10995ee1f348fb8f6829e3b208151c"},
	{Code: "br", Hash: "548bef06d1b4423ab8b84810a28e3b9c"},
}

// Stream is a position together with the base URL its playlist lives under.
type Stream struct {
	Position
	BaseURL string
}

// Streams expands the URL template for every position.
func Streams(baseURL string, positions []Position) []Stream {
	streams := make([]Stream, 0, len(positions))
	for _, p := range positions {
		streams = append(streams, Stream{
			Position: p,
			BaseURL:  strings.ReplaceAll(baseURL, "{hash}", p.Hash),
		})
	}
	return streams
}
