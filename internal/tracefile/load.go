package tracefile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vinayprograms/agentkit/logging"
)

// Format is a trace artifact encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// Record types of the JSONL encoding.
const (
	RecordTypeHeader = "header" // ast, relationships, metadata (first line)
	RecordTypeLine   = "line"   // one trace line
	RecordTypeFooter = "footer" // result or error (last line, optional)
)

// ErrEmptyTrace is returned when an artifact holds neither an AST nor any trace line.
var ErrEmptyTrace = errors.New("trace artifact is empty")

var logger = logging.New().WithComponent("tracefile")

// SetLogger routes the package's log lines through parent, keeping its output and level.
func SetLogger(parent *logging.Logger) {
	logger = parent.WithComponent("tracefile")
}

// artifact is the single-document JSON encoding.
type artifact struct {
	AST           *Node           `json:"ast"`
	Relationships []Relationship  `json:"relationships"`
	Trace         []Line          `json:"trace"`
	Metadata      Metadata        `json:"metadata"`
	Result        interface{}     `json:"result"`
	Error         json.RawMessage `json:"error,omitempty"`
}

// Record is one JSONL line with type discrimination.
type Record struct {
	RecordType string `json:"_type"`

	// Header fields
	AST           *Node          `json:"ast,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Metadata      *Metadata      `json:"metadata,omitempty"`

	// Line fields
	Line *Line `json:"line,omitempty"`

	// Footer fields
	Result interface{}     `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// DetectFormat picks the encoding of a trace file by extension, then by content.
func DetectFormat(path string) (Format, error) {
	if strings.HasSuffix(path, ".jsonl") {
		return FormatJSONL, nil
	}
	if strings.HasSuffix(path, ".json") {
		return FormatJSON, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 256)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	return sniffFormat(buf[:n]), nil
}

// sniffFormat inspects the first bytes of an artifact.
func sniffFormat(head []byte) Format {
	// JSONL records carry a _type discriminator on the first line
	firstLine := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		firstLine = head[:i]
	}
	if bytes.Contains(firstLine, []byte(`"_type"`)) {
		return FormatJSONL
	}
	return FormatJSON
}

// Load reads a trace artifact from disk, detecting its format.
// A failed instrumentation run yields an *ExecutionError.
func Load(path string) (*Trace, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect format: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	defer f.Close()

	t, err := Decode(f, format)
	if err != nil {
		return nil, err
	}
	logger.Debug("trace loaded", map[string]interface{}{
		"path":   path,
		"format": string(format),
		"lines":  len(t.Lines),
		"nodes":  t.NodeCount(),
	})
	return t, nil
}

// Decode reads a trace artifact in the given format.
func Decode(r io.Reader, format Format) (*Trace, error) {
	switch format {
	case FormatJSONL:
		return decodeJSONL(r)
	case FormatJSON, "":
		return decodeJSON(r)
	default:
		return nil, fmt.Errorf("unsupported trace format %q", format)
	}
}

func decodeJSON(r io.Reader) (*Trace, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyTrace
		}
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}
	if execErr := parseExecutionError(a.Error); execErr != nil {
		return nil, execErr
	}
	if a.AST == nil && len(a.Trace) == 0 {
		return nil, ErrEmptyTrace
	}
	reportDropped(a.Trace)
	return New(a.AST, a.Relationships, a.Trace, a.Metadata, a.Result), nil
}

func decodeJSONL(r io.Reader) (*Trace, error) {
	var (
		ast    *Node
		rels   []Relationship
		meta   Metadata
		lines  []Line
		result interface{}
	)

	reader := bufio.NewReader(r)
	lineNo := 0
	for {
		raw, readErr := reader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("error reading JSONL: %w", readErr)
		}
		lineNo++

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("failed to parse JSONL line %d: %w", lineNo, err)
			}
			switch rec.RecordType {
			case RecordTypeHeader:
				ast = rec.AST
				rels = rec.Relationships
				if rec.Metadata != nil {
					meta = *rec.Metadata
				}
			case RecordTypeLine:
				if rec.Line != nil {
					lines = append(lines, *rec.Line)
				}
			case RecordTypeFooter:
				if execErr := parseExecutionError(rec.Error); execErr != nil {
					return nil, execErr
				}
				result = rec.Result
			default:
				logger.Warn("skipping unknown JSONL record", map[string]interface{}{
					"line": lineNo,
					"type": rec.RecordType,
				})
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	if ast == nil && len(lines) == 0 {
		return nil, ErrEmptyTrace
	}
	reportDropped(lines)
	return New(ast, rels, lines, meta, result), nil
}

// parseExecutionError accepts either a structured error object or a bare message.
func parseExecutionError(raw json.RawMessage) *ExecutionError {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil {
			return &ExecutionError{Message: msg}
		}
	}
	var e ExecutionError
	if err := json.Unmarshal(raw, &e); err != nil {
		return &ExecutionError{Message: string(raw)}
	}
	return &e
}

func reportDropped(lines []Line) {
	for i := range lines {
		if n := lines[i].Dropped(); n > 0 {
			logger.Warn("dropped steps with unknown events", map[string]interface{}{
				"line":    lines[i].LineNumber,
				"dropped": n,
			})
		}
	}
}
