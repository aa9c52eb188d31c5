package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/tidwall/sjson"

	"github.com/dshills/hookwire/internal/logging"
)

// printer writes command output as JSON, an aligned table on a terminal,
// or tab-separated rows otherwise.
type printer struct {
	w    io.Writer
	json bool
	tty  bool
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, json: asJSON, tty: logging.IsTerminal(w)}
}

// table prints rows. Headers are only shown on a terminal.
func (p *printer) table(headers []string, rows [][]string) {
	if !p.tty {
		for _, row := range rows {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
		return
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// document builds a JSON document with sjson paths.
type document struct {
	raw string
	err error
}

func newDocument() *document {
	return &document{raw: "{}"}
}

// set assigns value at path. "-1" as a path element appends to an array.
func (d *document) set(path string, value any) *document {
	if d.err != nil {
		return d
	}
	d.raw, d.err = sjson.Set(d.raw, path, value)
	return d
}

// setRaw assigns a JSON fragment at path.
func (d *document) setRaw(path, raw string) *document {
	if d.err != nil {
		return d
	}
	d.raw, d.err = sjson.SetRaw(d.raw, path, raw)
	return d
}

func (p *printer) document(d *document) error {
	if d.err != nil {
		return fmt.Errorf("encoding output: %w", d.err)
	}
	_, err := fmt.Fprintln(p.w, d.raw)
	return err
}
