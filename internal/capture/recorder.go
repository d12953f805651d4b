// Package capture observes outbound HTTP exchanges and merges the ones aimed
// at a target into a spec document.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThalitaPinheiro/defacto/internal/spec"
	"github.com/ThalitaPinheiro/defacto/internal/store"
)

// Recorder runs the read-merge-write cycle for captured exchanges.
type Recorder struct {
	store  *store.Store
	target *Target
	policy spec.ConflictPolicy
	logger *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithConflictPolicy selects how parameter location clashes are handled.
func WithConflictPolicy(p spec.ConflictPolicy) Option {
	return func(r *Recorder) { r.policy = p }
}

// WithLogger sets the logger for capture diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

func NewRecorder(st *store.Store, target *Target, opts ...Option) *Recorder {
	r := &Recorder{store: st, target: target, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Target returns the target the recorder classifies paths against.
func (r *Recorder) Target() *Target { return r.target }

// Record merges ex into the store. Exchanges whose response is not JSON are
// dropped without error. Location conflicts are logged as warnings unless
// the recorder rejects them, in which case the *spec.ConflictError is
// returned.
func (r *Recorder) Record(ctx context.Context, ex spec.Exchange) error {
	log := r.logger.With("method", strings.ToUpper(ex.Method), "path", ex.Path, "status", ex.Status)
	if id := exchangeID(ctx); id != "" {
		log = log.With("exchange", id)
	}

	var res spec.Result
	err := r.store.Update(func(d *spec.Document) error {
		var err error
		res, err = d.Apply(ex, r.target.Classifier(), spec.WithConflictPolicy(r.policy))
		return err
	})
	switch {
	case errors.Is(err, spec.ErrSkipped):
		log.Debug("skipped non-JSON exchange")
		return nil
	case err != nil:
		return fmt.Errorf("capture: record %s %s: %w", strings.ToUpper(ex.Method), ex.Path, err)
	}

	for _, c := range res.Conflicts {
		log.Warn("parameter seen in two locations",
			"template", c.Template, "name", c.Name, "kept", c.Existing, "observed", c.Observed)
	}
	log.Debug("recorded exchange", "template", res.Route.Template, "body", res.BodyRecorded)
	return nil
}

type exchangeIDKey struct{}

func withExchangeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, exchangeIDKey{}, id)
}

func exchangeID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(exchangeIDKey{}).(string)
	return id
}
