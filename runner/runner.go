package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ridoystarlord/mongoprov/diff"
	"github.com/ridoystarlord/mongoprov/introspect"
	"github.com/ridoystarlord/mongoprov/schema"
	"go.uber.org/zap"
)

// Store is the database surface a run needs. Implementations wrap
// ErrCollectionExists and ErrIndexConflict where applicable.
type Store interface {
	Inspect(ctx context.Context) (*introspect.State, error)
	CreateCollection(ctx context.Context, name string) error
	CreateIndex(ctx context.Context, collection string, idx schema.Index) error
	CountAdmins(ctx context.Context, collection string) (int64, error)
	DeleteAdmins(ctx context.Context, collection string) (int64, error)
	InsertAdmin(ctx context.Context, collection string, rec schema.AdminRecord) error
	Close(ctx context.Context) error
}

// Connector opens the Store for a run. The run owns and closes it.
type Connector func(ctx context.Context) (Store, error)

// Reporter receives the result once every step has succeeded.
type Reporter interface {
	Report(res *Result) error
}

// AdminSeed is the administrator the run guarantees. PasswordHash must
// already be hashed; the runner never sees a plaintext password.
type AdminSeed struct {
	Name         string
	PasswordHash string
}

type Options struct {
	// StopOnIndexError aborts the run at the first index failure. When false
	// the failure is logged, recorded in the result and the run continues.
	StopOnIndexError bool
	Reporter         Reporter
	Logger           *zap.Logger
	// Now defaults to time.Now; timestamps are stored in UTC.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{StopOnIndexError: true}
}

// Provisioner drives one run: Connecting → EnsuringCollections →
// EnsuringIndexes → BootstrappingAdmin → Reporting → Done, or Failed.
// It is not safe to run two provisioners against one database at once.
type Provisioner struct {
	def     *schema.Definition
	seed    AdminSeed
	connect Connector
	opts    Options
	log     *zap.Logger
}

func New(def *schema.Definition, seed AdminSeed, connect Connector, opts Options) *Provisioner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provisioner{
		def:     def,
		seed:    seed,
		connect: connect,
		opts:    opts,
		log:     opts.Logger.With(zap.String("database", def.Database)),
	}
}

type run struct {
	p     *Provisioner
	res   *Result
	store Store
	live  *introspect.State
}

// Run executes the pipeline once. The returned result is never nil; on
// failure its State is Failed and the error is one of the typed errors in
// this package.
func (p *Provisioner) Run(ctx context.Context) (*Result, error) {
	r := &run{
		p: p,
		res: &Result{
			Database:  p.def.Database,
			State:     Connecting,
			StartedAt: p.opts.Now().UTC(),
		},
	}
	r.res.Transitions = append(r.res.Transitions, Connecting)
	defer func() { r.res.Duration = p.opts.Now().Sub(r.res.StartedAt) }()

	steps := []func(context.Context) error{
		r.connect,
		r.ensureCollections,
		r.ensureIndexes,
		r.bootstrapAdmin,
		r.report,
	}

	defer r.close()

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return r.fail(fmt.Errorf("run cancelled during %s: %w", r.res.State, err))
		}
		if err := step(ctx); err != nil {
			return r.fail(err)
		}
		r.advance()
	}
	return r.res, nil
}

func (r *run) advance() {
	r.res.State = r.res.State.next()
	r.res.Transitions = append(r.res.Transitions, r.res.State)
	r.p.log.Debug("state", zap.Stringer("state", r.res.State))
}

func (r *run) fail(err error) (*Result, error) {
	r.p.log.Error("provisioning failed", zap.Stringer("state", r.res.State), zap.Error(err))
	r.res.FailedAt = r.res.State
	r.res.State = Failed
	r.res.Transitions = append(r.res.Transitions, Failed)
	r.res.Err = err
	return r.res, err
}

func (r *run) close() {
	if r.store == nil {
		return
	}
	// The run context may already be cancelled; closing must still happen.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Close(ctx); err != nil {
		r.p.log.Warn("closing database connection", zap.Error(err))
	}
}

func (r *run) connect(ctx context.Context) error {
	store, err := r.p.connect(ctx)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	r.store = store
	r.p.log.Info("connected")
	return nil
}

func (r *run) ensureCollections(ctx context.Context) error {
	live, err := r.store.Inspect(ctx)
	if err != nil {
		return &CollectionError{Op: "inspect", Err: err}
	}
	r.live = live

	missing := map[string]bool{}
	for _, op := range diff.DiffCollections(r.p.def, live) {
		missing[op.Collection] = true
	}

	for _, name := range r.p.def.CollectionNames() {
		if !missing[name] {
			r.res.CollectionsExisting = append(r.res.CollectionsExisting, name)
			continue
		}
		err := r.store.CreateCollection(ctx, name)
		switch {
		case errors.Is(err, ErrCollectionExists):
			r.p.log.Debug("collection appeared concurrently", zap.String("collection", name))
			r.res.CollectionsExisting = append(r.res.CollectionsExisting, name)
		case err != nil:
			return &CollectionError{Op: "create", Collection: name, Err: err}
		default:
			r.p.log.Info("collection created", zap.String("collection", name))
			r.res.CollectionsCreated = append(r.res.CollectionsCreated, name)
		}
	}
	return nil
}

func (r *run) ensureIndexes(ctx context.Context) error {
	ops := diff.DiffIndexes(r.p.def, r.live)
	r.res.IndexesPresent = r.p.def.IndexCount() - len(ops)

	for _, op := range ops {
		name := op.Index.EffectiveName()
		var err error
		switch op.Type {
		case diff.IndexConflict:
			err = &IndexConflictError{Collection: op.Collection, Index: name, Reason: op.Reason}
		case diff.CreateIndex:
			err = r.createIndex(ctx, op.Collection, *op.Index)
		}
		if err == nil {
			continue
		}

		r.res.IndexFailures = append(r.res.IndexFailures, IndexFailure{
			Collection: op.Collection,
			Index:      name,
			Conflict:   errors.Is(err, ErrIndexConflict),
			Err:        err,
		})
		if r.p.opts.StopOnIndexError {
			return err
		}
		r.p.log.Warn("index skipped",
			zap.String("collection", op.Collection),
			zap.String("index", name),
			zap.Error(err))
	}
	return nil
}

func (r *run) createIndex(ctx context.Context, collection string, idx schema.Index) error {
	err := r.store.CreateIndex(ctx, collection, idx)
	if err == nil {
		r.p.log.Info("index created", zap.String("collection", collection), zap.String("index", idx.EffectiveName()))
		r.res.IndexesCreated = append(r.res.IndexesCreated, IndexRef{
			Collection: collection,
			Name:       idx.EffectiveName(),
			Spec:       idx.String(),
		})
		return nil
	}
	if errors.Is(err, ErrIndexConflict) {
		return &IndexConflictError{Collection: collection, Index: idx.EffectiveName(), Err: err}
	}
	return &IndexError{Collection: collection, Index: idx.EffectiveName(), Err: err}
}

func (r *run) bootstrapAdmin(ctx context.Context) error {
	admin := r.p.def.Admin
	res := &r.res.Admin
	res.Collection = admin.Collection
	res.Name = r.p.seed.Name
	res.Policy = admin.Policy

	log := r.p.log.With(zap.String("collection", admin.Collection), zap.String("policy", string(admin.Policy)))

	switch admin.Policy {
	case schema.InsertIfAbsent:
		count, err := r.store.CountAdmins(ctx, admin.Collection)
		if err != nil {
			return &AdminBootstrapError{Op: "count", Collection: admin.Collection, Err: err}
		}
		if count > 0 {
			res.Outcome = AdminKept
			res.Existing = count
			log.Info("admin already present, left unchanged", zap.Int64("count", count))
			return nil
		}
	case schema.ResetToSingle:
		removed, err := r.store.DeleteAdmins(ctx, admin.Collection)
		if err != nil {
			return &AdminBootstrapError{Op: "delete", Collection: admin.Collection, Err: err}
		}
		res.Removed = removed
	default:
		return &AdminBootstrapError{Op: "select policy", Collection: admin.Collection,
			Err: fmt.Errorf("unknown policy %q", admin.Policy)}
	}

	now := r.p.opts.Now().UTC()
	rec := schema.AdminRecord{
		Name:      r.p.seed.Name,
		Password:  r.p.seed.PasswordHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.InsertAdmin(ctx, admin.Collection, rec); err != nil {
		return &AdminBootstrapError{Op: "insert", Collection: admin.Collection, Err: err}
	}

	if admin.Policy == schema.ResetToSingle {
		res.Outcome = AdminReset
	} else {
		res.Outcome = AdminInserted
	}
	log.Info("admin bootstrapped", zap.String("admin", rec.Name), zap.Int64("removed", res.Removed))
	return nil
}

func (r *run) report(_ context.Context) error {
	if r.p.opts.Reporter == nil {
		return nil
	}
	r.res.Duration = r.p.opts.Now().Sub(r.res.StartedAt)
	if err := r.p.opts.Reporter.Report(r.res); err != nil {
		return fmt.Errorf("reporting: %w", err)
	}
	return nil
}
