// Package output renders contracts and CLI status lines.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	okColor   = color.New(color.FgGreen)
	errColor  = color.New(color.FgRed)
	hintColor = color.New(color.FgYellow)
)

// UnknownFormatError is returned by Render for anything but json or yaml.
type UnknownFormatError struct {
	Format string
}

func (e *UnknownFormatError) Error() string { return "Unknown output format: " + e.Format }

// Render encodes v as JSON, compact or indented by two spaces, or as block
// YAML. Non-ASCII text is written as is and HTML characters are not escaped.
// The result ends with a newline.
func Render(v any, format string, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if pretty {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, &UnknownFormatError{Format: format}
	}
	return buf.Bytes(), nil
}

// Printer writes rendered documents and status lines.
type Printer struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Std prints to the process streams.
func Std() Printer { return Printer{Stdout: os.Stdout, Stderr: os.Stderr} }

// Contract renders v and writes it to path, or to Stdout when path is
// empty. Parent directories of path are created.
func (p Printer) Contract(v any, path, format string, pretty bool) error {
	data, err := Render(v, format, pretty)
	if err != nil {
		return err
	}
	if path == "" {
		_, err := p.Stdout.Write(data)
		return err
	}
	if err := WriteFile(path, data); err != nil {
		return err
	}
	p.Success("Contract written to %s", path)
	return nil
}

// JSON writes v indented by two spaces to Stdout.
func (p Printer) JSON(v any) error {
	data, err := Render(v, FormatJSON, true)
	if err != nil {
		return err
	}
	_, err = p.Stdout.Write(data)
	return err
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Success prints "✓ <msg>" to Stderr.
func (p Printer) Success(format string, args ...any) {
	okColor.Fprintf(p.Stderr, "✓ "+format+"\n", args...)
}

// Error prints "✗ Error: <msg>" and, when hint is set, "  Hint: <hint>"
// to Stderr.
func (p Printer) Error(msg, hint string) {
	errColor.Fprintf(p.Stderr, "✗ Error: %s\n", msg)
	if hint != "" {
		hintColor.Fprintf(p.Stderr, "  Hint: %s\n", hint)
	}
}

// Errorf writes formatted text to Stderr.
func (p Printer) Errorf(format string, args ...any) {
	fmt.Fprintf(p.Stderr, format, args...)
}

// Println writes one line to Stdout.
func (p Printer) Println(a ...any) {
	fmt.Fprintln(p.Stdout, a...)
}

// Printf writes formatted text to Stdout.
func (p Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.Stdout, format, args...)
}
