package restart

import (
	"encoding/json"
	"fmt"
	"io"
)

// Finding is one line of output: a stale process, and in verbose mode the
// stale file.
type Finding struct {
	PID  int
	Path string
}

// Sink receives findings as soon as they are made. The Scanner never calls
// Report concurrently.
type Sink interface {
	Report(Finding) error
}

// TextSink writes "<pid>\n", or "<pid>\t<path>\n" when Path is set.
type TextSink struct {
	w io.Writer
}

func NewTextSink(w io.Writer) *TextSink { return &TextSink{w: w} }

func (s *TextSink) Report(f Finding) error {
	var err error
	if f.Path == "" {
		_, err = fmt.Fprintf(s.w, "%d\n", f.PID)
	} else {
		_, err = fmt.Fprintf(s.w, "%d\t%s\n", f.PID, f.Path)
	}
	return err
}

// ProcessInfo describes a process for structured output. proc.FS
// implements it.
type ProcessInfo interface {
	Comm(pid int) (string, error)
	Unit(pid int) (string, error)
}

// JSONSink writes one JSON object per finding:
//
//	{"pid":1234,"comm":"sshd","unit":"sshd.service","path":"/usr/lib/libcrypto.so.3"}
//
// comm and unit are looked up at report time and omitted when unknown.
type JSONSink struct {
	enc  *json.Encoder
	info ProcessInfo
}

// NewJSONSink writes to w. info may be nil.
func NewJSONSink(w io.Writer, info ProcessInfo) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w), info: info}
}

type jsonFinding struct {
	PID  int    `json:"pid"`
	Comm string `json:"comm,omitempty"`
	Unit string `json:"unit,omitempty"`
	Path string `json:"path,omitempty"`
}

func (s *JSONSink) Report(f Finding) error {
	out := jsonFinding{PID: f.PID, Path: f.Path}
	if s.info != nil {
		if c, err := s.info.Comm(f.PID); err == nil {
			out.Comm = c
		}
		if u, err := s.info.Unit(f.PID); err == nil {
			out.Unit = u
		}
	}
	return s.enc.Encode(out)
}

// bufferSink holds one process's findings until the process is done, so
// parallel scans never interleave lines of different processes.
type bufferSink struct {
	findings []Finding
}

func (b *bufferSink) Report(f Finding) error {
	b.findings = append(b.findings, f)
	return nil
}

func (b *bufferSink) flush(to Sink) error {
	for _, f := range b.findings {
		if err := to.Report(f); err != nil {
			return err
		}
	}
	b.findings = b.findings[:0]
	return nil
}
