package cli

import (
	"fmt"
	"io"
	"os"

	"grocery-helpers/internal/types"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the command line logger. LOG_LEVEL wins over --verbose.
func NewLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
			return logger
		}
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// NewTable returns a rounded table writer that prints to out
func NewTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// RenderSlots prints slots with one row per time and one column per day.
// Missing cells are left blank.
func RenderSlots(out io.Writer, slots *types.SlotTable) {
	t := NewTable(out)

	header := table.Row{""}
	for _, day := range slots.Days {
		header = append(header, day)
	}
	t.AppendHeader(header)

	for _, time := range slots.Times {
		row := table.Row{time}
		for _, day := range slots.Days {
			label, _ := slots.Get(day, time)
			row = append(row, label)
		}
		t.AppendRow(row)
	}
	t.Render()
}

// Exit reports err on stderr and exits non-zero
func Exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
