package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"
	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/catalog"
	"github.com/roach88/strata/internal/journal"
	"github.com/roach88/strata/internal/jsbridge"
	"github.com/roach88/strata/internal/keyset"
	"github.com/roach88/strata/internal/loader"
	"github.com/roach88/strata/internal/seq"
)

// Input prefixes.
const (
	catalogPrefix = "@"
	jsPrefix      = "js:"
)

// session holds what an evaluating command opens: the ref table shared by
// all of its inputs, a JS runtime created on first use, and the optional
// journal and catalog.
type session struct {
	opts      *RootOptions
	cmd       *cobra.Command
	out       *OutputFormatter
	refs      *seq.RefTable
	journal   *journal.Journal
	catalog   *catalog.Catalog
	bridge    *jsbridge.Bridge
	arrayLike bool
}

func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	s := &session{
		opts: opts,
		cmd:  cmd,
		out:  opts.formatter(cmd),
		refs: seq.NewRefTable(),
	}
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal, journal.WithLogger(opts.logger()))
		if err != nil {
			return nil, s.commandError(ErrCodeJournal, "open journal", err)
		}
		s.journal = j
	}
	if opts.Catalog != "" {
		c, err := catalog.Open(opts.Catalog, catalog.WithLogger(opts.logger()))
		if err != nil {
			s.Close()
			return nil, s.commandError(ErrCodeCatalog, "open catalog", err)
		}
		s.catalog = c
	}
	return s, nil
}

// Close releases the journal and catalog.
func (s *session) Close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.opts.logger().Warn("close journal", "error", err)
		}
	}
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil {
			s.opts.logger().Warn("close catalog", "error", err)
		}
	}
}

func (s *session) ctx() context.Context {
	if ctx := s.cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// commandError reports err and returns it as an ExitCommandError.
func (s *session) commandError(code, msg string, err error) error {
	_ = s.out.Error(code, fmt.Sprintf("%s: %v", msg, err), nil)
	return WrapExitError(ExitCommandError, msg, err)
}

func (s *session) js() *jsbridge.Bridge {
	if s.bridge == nil {
		opts := []jsbridge.Option{jsbridge.WithLimits(s.opts.Limits())}
		if s.arrayLike {
			opts = append(opts, jsbridge.WithArrayLike())
		}
		s.bridge = jsbridge.New(goja.New(), opts...)
	}
	return s.bridge
}

// callback compiles a JS function expression given on the command line.
func (s *session) callback(flag, src string) (jsbridge.Callback, error) {
	fn, err := s.js().Func(src)
	if err != nil {
		return nil, s.commandError(ErrCodeLoadFailed, "--"+flag, err)
	}
	return fn, nil
}

func (s *session) requireCatalog() error {
	if s.catalog == nil {
		return s.commandError(ErrCodeCatalog, "catalog", errors.New("--catalog is required"))
	}
	return nil
}

// input resolves an input argument: @name reads the catalog, js:<expr>
// evaluates JS, "-" reads JSON from stdin, anything else is a literal file.
func (s *session) input(arg string) (*seq.Store, error) {
	var (
		st  *seq.Store
		err error
	)
	switch {
	case strings.HasPrefix(arg, catalogPrefix):
		if err := s.requireCatalog(); err != nil {
			return nil, err
		}
		st, err = s.catalog.Store(strings.TrimPrefix(arg, catalogPrefix), s.refs)
	case strings.HasPrefix(arg, jsPrefix):
		var v seq.Value
		if v, err = s.js().Eval(strings.TrimPrefix(arg, jsPrefix)); err == nil {
			var ok bool
			if st, ok = v.(*seq.Store); !ok {
				err = fmt.Errorf("expression evaluated to %s, not an array", seq.Describe(v))
			}
		}
	case arg == "-":
		var data []byte
		if data, err = io.ReadAll(s.cmd.InOrStdin()); err == nil {
			st, err = loader.Parse(loader.FormatJSON, data, s.refs)
		}
	default:
		st, err = loader.Load(arg, s.refs)
	}

	if err != nil {
		code := ErrCodeLoadFailed
		if errors.Is(err, catalog.ErrNotFound) {
			code = ErrCodeNotFound
		}
		return nil, s.commandError(code, "input "+arg, err)
	}
	s.opts.logger().Debug("input loaded", "input", arg, "length", st.Len())
	return st, nil
}

// setInput resolves a set operand. An @name that the catalog holds as a
// set keeps its stored equality; any other input is keyed with eq.
func (s *session) setInput(arg string, eq keyset.Equality) (*keyset.Set, error) {
	if strings.HasPrefix(arg, catalogPrefix) && s.catalog != nil {
		set, err := s.catalog.Set(strings.TrimPrefix(arg, catalogPrefix), s.refs)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return nil, s.commandError(ErrCodeCatalog, "input "+arg, err)
		}
	}
	st, err := s.input(arg)
	if err != nil {
		return nil, err
	}
	return keyset.FromStore(eq, st), nil
}

// evaluation is one engine call made by a command.
type evaluation struct {
	op     string
	args   []seq.Value
	inputs []seq.Value
	run    func() (seq.Value, error)
}

// EvalResult is the JSON payload of an evaluating command.
type EvalResult struct {
	Op      string          `json:"op"`
	Output  json.RawMessage `json:"output"`
	Length  *int            `json:"length,omitempty"`
	EntryID string          `json:"entry_id,omitempty"`
}

// eval runs ev, records it in the journal when one is configured and
// prints the output as canonical JSON.
func (s *session) eval(ev evaluation) error {
	out, evalErr := ev.run()

	var entryID string
	if s.journal != nil {
		entry, err := s.journal.Record(s.ctx(), journal.Evaluation{
			Op:     ev.op,
			Args:   ev.args,
			Inputs: ev.inputs,
			Output: out,
			Err:    evalErr,
		})
		if err != nil {
			return s.commandError(ErrCodeJournal, "record evaluation", err)
		}
		entryID = entry.ID
	}

	if evalErr != nil {
		s.opts.logger().Debug("evaluation failed", "op", ev.op, "error", evalErr)
		_ = s.out.Error(ErrorCodeFor(evalErr), evalErr.Error(), map[string]string{"op": ev.op})
		return WrapExitError(ExitFailure, ev.op+" failed", evalErr)
	}

	raw, err := seq.MarshalCanonical(out)
	if err != nil {
		return WrapExitError(ExitFailure, "encode output", err)
	}
	s.opts.logger().Debug("evaluated", "op", ev.op, "entry", entryID)

	if s.out.Format != "json" {
		return s.out.Success(string(raw))
	}
	res := EvalResult{Op: ev.op, Output: raw, EntryID: entryID}
	if st, ok := out.(*seq.Store); ok {
		n := st.Len()
		res.Length = &n
	}
	return s.out.Success(res)
}

// storeResult converts an engine result without leaking a typed nil.
func storeResult(st *seq.Store, err error) (seq.Value, error) {
	if err != nil {
		return nil, err
	}
	return st, nil
}
