package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/strata/internal/seq"
)

// Outcome is the result class of an evaluation.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// CodeUpstream is the error code recorded for failures that did not come
// from an engine: producer, callback and host errors.
const CodeUpstream = "UPSTREAM_FAILURE"

// Evaluation describes one engine call to record.
type Evaluation struct {
	// Op is the operation name ("flat", "toSpliced", "union", ...).
	Op string

	// Args are the scalar arguments in call order.
	Args []seq.Value

	// Inputs are the operand stores, digested rather than stored.
	Inputs []seq.Value

	// Output is the result. Ignored when Err is set.
	Output seq.Value

	// Err is the call's error, if any.
	Err error
}

// Entry is a recorded evaluation.
type Entry struct {
	ID           string   `json:"id"`
	Seq          int64    `json:"seq"`
	Op           string   `json:"op"`
	Args         string   `json:"args"`
	InputDigests []string `json:"input_digests"`
	OutputDigest string   `json:"output_digest,omitempty"`
	OutputLen    int      `json:"output_len"`
	Outcome      Outcome  `json:"outcome"`
	ErrorCode    string   `json:"error_code,omitempty"`
}

// Record appends an evaluation and returns the stored entry.
func (j *Journal) Record(ctx context.Context, ev Evaluation) (Entry, error) {
	if ev.Op == "" {
		return Entry{}, seq.InvalidArgument("journal.record", "op is empty")
	}

	args := make([]seq.Value, len(ev.Args))
	for i, a := range ev.Args {
		if a == nil {
			a = seq.Undefined{}
		}
		args[i] = a
	}
	argsJSON, err := seq.MarshalCanonical(seq.New(args...))
	if err != nil {
		return Entry{}, fmt.Errorf("record: args: %w", err)
	}

	inputs := make([]string, len(ev.Inputs))
	for i, in := range ev.Inputs {
		if in == nil {
			continue
		}
		if inputs[i], err = seq.Digest(seq.DomainStore, in); err != nil {
			return Entry{}, fmt.Errorf("record: input %d: %w", i, err)
		}
	}
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return Entry{}, fmt.Errorf("record: inputs: %w", err)
	}

	e := Entry{
		ID:           j.ids.Generate(),
		Op:           ev.Op,
		Args:         string(argsJSON),
		InputDigests: inputs,
		Outcome:      OutcomeOK,
	}

	switch {
	case ev.Err != nil:
		e.Outcome = OutcomeError
		e.ErrorCode = string(seq.CodeOf(ev.Err))
		if e.ErrorCode == "" {
			e.ErrorCode = CodeUpstream
		}
	case ev.Output != nil:
		if e.OutputDigest, err = seq.Digest(seq.DomainStore, ev.Output); err != nil {
			return Entry{}, fmt.Errorf("record: output: %w", err)
		}
		if s, ok := ev.Output.(*seq.Store); ok {
			e.OutputLen = s.Len()
		}
	}

	if err := j.insert(ctx, &e, string(inputsJSON)); err != nil {
		return Entry{}, err
	}

	j.logger.Debug("evaluation recorded",
		"seq", e.Seq,
		"op", e.Op,
		"outcome", string(e.Outcome),
		"error_code", e.ErrorCode,
	)
	return e, nil
}

// insert stamps e with its seq and writes it in one transaction. Without an
// injected Sequencer the seq is read from the table under the write lock,
// so processes sharing the file never hand out the same one.
func (j *Journal) insert(ctx context.Context, e *Entry, inputs string) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record evaluation: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if j.clock != nil {
		e.Seq = j.clock.Next()
	} else if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM evaluations`,
	).Scan(&e.Seq); err != nil {
		return fmt.Errorf("record evaluation: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluations
		(id, seq, op, args, input_digests, output_digest, output_len, outcome, error_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Seq,
		e.Op,
		e.Args,
		inputs,
		e.OutputDigest,
		e.OutputLen,
		string(e.Outcome),
		e.ErrorCode,
	)
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record evaluation: commit: %w", err)
	}
	return nil
}

// List returns entries in seq order. A positive limit keeps only the most
// recent limit entries, still in ascending order. An empty op matches every
// operation.
func (j *Journal) List(ctx context.Context, op string, limit int) ([]Entry, error) {
	query := `
		SELECT id, seq, op, args, input_digests, output_digest, output_len, outcome, error_code
		FROM evaluations
		WHERE (? = '' OR op = ?)
		ORDER BY seq DESC
	`
	args := []any{op, op}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}

	// Rows come newest first so LIMIT keeps the tail; restore seq order.
	for l, r := 0, len(entries)-1; l < r; l, r = l+1, r-1 {
		entries[l], entries[r] = entries[r], entries[l]
	}
	return entries, nil
}

// Last returns the entry with the highest seq, or false for an empty
// journal.
func (j *Journal) Last(ctx context.Context) (Entry, bool, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, seq, op, args, input_digests, output_digest, output_len, outcome, error_code
		FROM evaluations
		ORDER BY seq DESC
		LIMIT 1
	`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e       Entry
		inputs  string
		outcome string
	)
	err := row.Scan(&e.ID, &e.Seq, &e.Op, &e.Args, &inputs, &e.OutputDigest, &e.OutputLen, &outcome, &e.ErrorCode)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan evaluation: %w", err)
	}
	if err := json.Unmarshal([]byte(inputs), &e.InputDigests); err != nil {
		return Entry{}, fmt.Errorf("decode input digests of %s: %w", e.ID, err)
	}
	e.Outcome = Outcome(outcome)
	return e, nil
}
