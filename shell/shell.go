// Package shell is the card's provisioning and diagnostic console. Each input
// line is one command; each command answers with exactly one JSON object on
// its own line, carrying an "event" field.
//
//	HELLO
//	GET_STATE
//	CLEAR
//	DUMP [offset] [count]
//	PROVISION_KEY <version 1..255> [64 hex chars]
//	SIGN_STATE <nonce, 2..64 hex chars>
//
// Command names are case-insensitive. Failures answer
// {"event":"error","msg":"..."}.
package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	proto "github.com/ystepanoff/taplink/protocol"
	"github.com/ystepanoff/taplink/storage"
)

// MaxLine is the longest accepted command line, terminator excluded. Longer
// lines are dropped without an answer.
const MaxLine = 127

// DefaultDumpCount is the page size of DUMP without a count.
const DefaultDumpCount = 10

// Build identifies the firmware in the HELLO answer.
type Build struct {
	Version string
	Date    string
	Hash    string
}

type Shell struct {
	store *storage.Store
	ids   proto.IdentitySource
	build Build
	log   zerolog.Logger

	out     *json.Encoder
	line    []byte
	tooLong bool
}

type Option func(*Shell)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Shell) { s.log = l }
}

func WithBuild(b Build) Option {
	return func(s *Shell) { s.build = b }
}

// New returns a shell answering on out. ids is the hardware identity that
// HELLO reports; the stored identifier is used for signing.
func New(store *storage.Store, ids proto.IdentitySource, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		store: store,
		ids:   ids,
		build: Build{Version: "dev", Date: "unknown", Hash: "unknown"},
		log:   zerolog.Nop(),
		out:   json.NewEncoder(out),
		line:  make([]byte, 0, MaxLine),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve feeds r to the shell until EOF or ctx is done.
func (s *Shell) Serve(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			s.Feed('\n')
			return nil
		}
		if err != nil {
			return fmt.Errorf("shell: read: %w", err)
		}
		s.Feed(c)
	}
}

// Feed consumes one input byte and runs the command when a line ends. CR is
// ignored so both LF and CRLF endings work. The card's main loop calls it for
// every byte the serial port has buffered.
func (s *Shell) Feed(c byte) {
	switch c {
	case '\r':
	case '\n':
		line, tooLong := string(s.line), s.tooLong
		s.line, s.tooLong = s.line[:0], false
		if tooLong {
			s.log.Debug().Int("max", MaxLine).Msg("line too long, dropped")
			return
		}
		s.Handle(line)
	default:
		if len(s.line) < MaxLine {
			s.line = append(s.line, c)
		} else {
			s.tooLong = true
		}
	}
}

// Handle runs one command line and writes its answer. Blank lines are
// ignored.
func (s *Shell) Handle(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]
	s.log.Debug().Str("cmd", cmd).Strs("args", args).Msg("shell command")

	switch cmd {
	case "HELLO":
		s.hello()
	case "GET_STATE":
		s.state()
	case "CLEAR":
		s.clear()
	case "DUMP":
		offset, count := 0, DefaultDumpCount
		if len(args) > 0 {
			offset = atoi(args[0])
		}
		if len(args) > 1 {
			count = atoi(args[1])
		}
		s.dump(offset, count)
	case "PROVISION_KEY":
		switch len(args) {
		case 0:
			s.fail("PROVISION_KEY args")
		case 1:
			s.generateKey(atoi(args[0]))
		default:
			s.provisionKey(atoi(args[0]), args[1])
		}
	case "SIGN_STATE":
		if len(args) < 1 {
			s.fail("SIGN_STATE args")
			return
		}
		s.signState(args[0])
	default:
		s.fail("unknown command: " + cmd)
	}
}

// atoi parses a leading decimal integer and yields 0 when there is none.
func atoi(s string) int {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func (s *Shell) emit(v any) {
	if err := s.out.Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("shell write failed")
	}
}

type errorEvent struct {
	Event string `json:"event"`
	Msg   string `json:"msg"`
}

func (s *Shell) fail(msg string) {
	s.emit(errorEvent{Event: "error", Msg: msg})
}

type ackEvent struct {
	Event      string `json:"event"`
	Cmd        string `json:"cmd"`
	KeyVersion *int   `json:"keyVersion,omitempty"`
	Key        string `json:"key,omitempty"`
}
