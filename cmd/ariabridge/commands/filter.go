package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/aria-bridge/bridge-go/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output    string
	SessionID string
	ClientID  string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// BuildFilter converts string options into a log filter.
func (opts FilterOptions) BuildFilter() (log.Filter, error) {
	filter := log.Filter{
		SessionID: opts.SessionID,
		ClientID:  opts.ClientID,
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if opts.Layer != "" {
		l, err := ParseLayer(opts.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if opts.Direction != "" {
		d, err := ParseDirection(opts.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if opts.Category != "" {
		c, err := ParseCategory(opts.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// RunFilter writes the events of path matching opts to opts.Output and
// reports the count on w.
func RunFilter(path string, opts FilterOptions, w io.Writer) error {
	if opts.Output == "" {
		return fmt.Errorf("output file required")
	}
	filter, err := opts.BuildFilter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}

	err = reader.Each(func(event log.Event) error {
		logger.Log(event)
		return nil
	})
	if cerr := logger.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output: %w", cerr)
	}
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", logger.Written(), opts.Output)
	return nil
}
