package mutator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/giantswarm/ldapenv/internal/ldif"
)

// DefaultTimeout bounds one Add, Modify or Delete call.
const DefaultTimeout = 30 * time.Second

// Mutator applies LDIF through connections obtained from a Dialer.
type Mutator struct {
	dial    Dialer
	timeout time.Duration
	log     *slog.Logger
}

// New returns a Mutator. A timeout <= 0 means DefaultTimeout.
// Panics if dial is nil.
func New(dial Dialer, timeout time.Duration, logger *slog.Logger) *Mutator {
	if dial == nil {
		panic("ldapenv: mutator dialer must not be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{dial: dial, timeout: timeout, log: logger}
}

// operation is one prepared protocol request.
type operation struct {
	name string
	dn   string
	run  func(Conn) error
}

// Add applies text the way ldapadd does: records without a changetype are
// added, change records are applied as written.
func (m *Mutator) Add(ctx context.Context, text string) error {
	ops, err := recordOps(text, false)
	if err != nil {
		return err
	}
	return m.apply(ctx, ops)
}

// Modify applies change records. Every record needs a changetype.
func (m *Mutator) Modify(ctx context.Context, text string) error {
	ops, err := recordOps(text, true)
	if err != nil {
		return err
	}
	return m.apply(ctx, ops)
}

// Delete removes entries. text is either a list of DNs, one per line, or
// LDIF records with "changetype: delete".
func (m *Mutator) Delete(ctx context.Context, text string) error {
	ops, err := deleteOps(text)
	if err != nil {
		return err
	}
	return m.apply(ctx, ops)
}

// AddFile is Add with the LDIF read from path.
func (m *Mutator) AddFile(ctx context.Context, path string) error {
	return m.fromFile(ctx, path, m.Add)
}

// ModifyFile is Modify with the LDIF read from path.
func (m *Mutator) ModifyFile(ctx context.Context, path string) error {
	return m.fromFile(ctx, path, m.Modify)
}

// DeleteFile is Delete with the input read from path.
func (m *Mutator) DeleteFile(ctx context.Context, path string) error {
	return m.fromFile(ctx, path, m.Delete)
}

func (m *Mutator) fromFile(ctx context.Context, path string, fn func(context.Context, string) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ldif: %w", err)
	}
	return fn(ctx, string(data))
}

// apply sends ops in order on one connection.
func (m *Mutator) apply(ctx context.Context, ops []operation) error {
	if len(ops) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dial(ctx)
	if err != nil {
		return newMutationError(OpConnect, "", err)
	}
	// Closing the connection unblocks an in-flight request when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		if stop() {
			_ = conn.Close()
		}
	}()

	for i, op := range ops {
		if err := op.run(conn); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = fmt.Errorf("%w (%w)", ctxErr, err)
			}
			m.log.Debug("mutation failed", "op", op.name, "dn", op.dn, "index", i, "error", err)
			return newMutationError(op.name, op.dn, err)
		}
	}
	m.log.Debug("mutation applied", "operations", len(ops))
	return nil
}

func recordOps(text string, requireChangeType bool) ([]operation, error) {
	records, err := ldif.ParseString(text)
	if err != nil {
		return nil, err //nolint:wrapcheck // ParseError already names the line
	}

	ops := make([]operation, 0, len(records))
	for i := range records {
		rec := &records[i]
		if requireChangeType && rec.ChangeType == ldif.ChangeNone {
			return nil, &ldif.ParseError{Line: rec.Line, Msg: fmt.Sprintf("record %q has no changetype", rec.DN)}
		}
		op, err := recordOp(rec)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func deleteOps(text string) ([]operation, error) {
	if !ldif.HasRecords(text) {
		dns, err := ldif.ParseDNList(text)
		if err != nil {
			return nil, err //nolint:wrapcheck // ParseError already names the line
		}
		ops := make([]operation, 0, len(dns))
		for _, dn := range dns {
			ops = append(ops, deleteOp(dn))
		}
		return ops, nil
	}

	records, err := ldif.ParseString(text)
	if err != nil {
		return nil, err //nolint:wrapcheck // ParseError already names the line
	}
	ops := make([]operation, 0, len(records))
	for _, rec := range records {
		if rec.ChangeType != ldif.ChangeDelete {
			return nil, &ldif.ParseError{Line: rec.Line, Msg: fmt.Sprintf("record %q is not a delete", rec.DN)}
		}
		ops = append(ops, deleteOp(rec.DN))
	}
	return ops, nil
}

// recordOp turns a parsed record into its protocol request.
func recordOp(rec *ldif.Record) (operation, error) {
	switch rec.ChangeType {
	case ldif.ChangeNone, ldif.ChangeAdd:
		req := ldap.NewAddRequest(rec.DN, nil)
		for _, a := range rec.Attributes {
			req.Attribute(a.Name, a.Values)
		}
		return operation{name: OpAdd, dn: rec.DN, run: func(c Conn) error { return c.Add(req) }}, nil

	case ldif.ChangeDelete:
		return deleteOp(rec.DN), nil

	case ldif.ChangeModify:
		req := ldap.NewModifyRequest(rec.DN, nil)
		for _, ch := range rec.Changes {
			switch ch.Op {
			case ldif.ModAdd:
				req.Add(ch.Name, ch.Values)
			case ldif.ModDelete:
				req.Delete(ch.Name, ch.Values)
			case ldif.ModReplace:
				req.Replace(ch.Name, ch.Values)
			case ldif.ModIncrement:
				if len(ch.Values) != 1 {
					return operation{}, &ldif.ParseError{
						Line: rec.Line,
						Msg:  fmt.Sprintf("increment of %s needs exactly one value", ch.Name),
					}
				}
				req.Increment(ch.Name, ch.Values[0])
			}
		}
		return operation{name: OpModify, dn: rec.DN, run: func(c Conn) error { return c.Modify(req) }}, nil

	case ldif.ChangeModDN:
		req := ldap.NewModifyDNRequest(rec.DN, rec.NewRDN, rec.DeleteOldRDN, rec.NewSuperior)
		return operation{name: OpModDN, dn: rec.DN, run: func(c Conn) error { return c.ModifyDN(req) }}, nil
	}
	return operation{}, &ldif.ParseError{Line: rec.Line, Msg: fmt.Sprintf("unsupported changetype %q", rec.ChangeType)}
}

func deleteOp(dn string) operation {
	req := ldap.NewDelRequest(dn, nil)
	return operation{name: OpDelete, dn: dn, run: func(c Conn) error { return c.Del(req) }}
}
