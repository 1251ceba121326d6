package ingest

import (
	"io"

	"load_forecaster/internal/model"
)

// Parser reads raw load data from a source and returns observation rows.
type Parser interface {
	Parse(r io.Reader) ([]model.Observation, error)
}
