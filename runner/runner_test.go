package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ridoystarlord/mongoprov/introspect"
	"github.com/ridoystarlord/mongoprov/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store that behaves like mongod for the
// operations a run performs.
type memStore struct {
	collections map[string][]schema.Index
	admins      map[string][]schema.AdminRecord

	failCreateIndex map[string]error
	failInsertAdmin error
	closed          bool
	calls           []string
}

func newMemStore() *memStore {
	return &memStore{
		collections:     map[string][]schema.Index{},
		admins:          map[string][]schema.AdminRecord{},
		failCreateIndex: map[string]error{},
	}
}

func (m *memStore) Inspect(ctx context.Context) (*introspect.State, error) {
	m.calls = append(m.calls, "inspect")
	state := introspect.NewState("test")
	for name, idx := range m.collections {
		state.Collections[name] = introspect.ExistingCollection{Name: name, Indexes: append([]schema.Index(nil), idx...)}
	}
	return state, nil
}

func (m *memStore) CreateCollection(ctx context.Context, name string) error {
	m.calls = append(m.calls, "createCollection "+name)
	if _, ok := m.collections[name]; ok {
		return fmt.Errorf("%w: (NamespaceExists)", ErrCollectionExists)
	}
	m.collections[name] = nil
	return nil
}

func (m *memStore) CreateIndex(ctx context.Context, collection string, idx schema.Index) error {
	name := idx.EffectiveName()
	m.calls = append(m.calls, "createIndex "+collection+"."+name)
	if err := m.failCreateIndex[collection+"."+name]; err != nil {
		return err
	}
	for _, live := range m.collections[collection] {
		if live.SameAs(idx) {
			return nil
		}
		if live.Name == name || live.Signature() == idx.Signature() {
			return fmt.Errorf("%w: (IndexOptionsConflict)", ErrIndexConflict)
		}
	}
	idx.Name = name
	m.collections[collection] = append(m.collections[collection], idx)
	return nil
}

func (m *memStore) CountAdmins(ctx context.Context, collection string) (int64, error) {
	return int64(len(m.admins[collection])), nil
}

func (m *memStore) DeleteAdmins(ctx context.Context, collection string) (int64, error) {
	n := int64(len(m.admins[collection]))
	m.admins[collection] = nil
	return n, nil
}

func (m *memStore) InsertAdmin(ctx context.Context, collection string, rec schema.AdminRecord) error {
	if m.failInsertAdmin != nil {
		return m.failInsertAdmin
	}
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = nil
	}
	m.admins[collection] = append(m.admins[collection], rec)
	return nil
}

func (m *memStore) Close(ctx context.Context) error {
	m.closed = true
	return nil
}

type recordingReporter struct {
	reported *Result
	state    State
}

func (r *recordingReporter) Report(res *Result) error {
	r.reported = res
	r.state = res.State
	return nil
}

const testHash = "$2a$04$abcdefghijklmnopqrstuuQ0kF3Yx2E1Vt0sHq2Yh3m6Zr8Xy7u9a"

func key(field string, kind schema.KeyKind) schema.Key { return schema.Key{Field: field, Kind: kind} }

func testDefinition() *schema.Definition {
	def := &schema.Definition{
		Database: "test",
		Collections: []schema.Collection{
			{Name: "users", Indexes: []schema.Index{
				{Keys: []schema.Key{key("email", schema.Asc)}, Unique: true},
				{Keys: []schema.Key{key("phone", schema.Asc)}, Unique: true},
			}},
			{Name: "products", Indexes: []schema.Index{
				{Keys: []schema.Key{key("name", schema.Text), key("description", schema.Text)}},
			}},
			{Name: "orders", Indexes: []schema.Index{
				{Keys: []schema.Key{key("created_at", schema.Desc)}},
			}},
			{Name: "admins", Indexes: []schema.Index{
				{Keys: []schema.Key{key("name", schema.Asc)}, Unique: true},
			}},
		},
	}
	def.ApplyDefaults()
	return def
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60))

func newProvisioner(def *schema.Definition, store *memStore, opts Options) *Provisioner {
	opts.Now = func() time.Time { return fixedNow }
	return New(def, AdminSeed{Name: "admin", PasswordHash: testHash},
		func(ctx context.Context) (Store, error) { return store, nil }, opts)
}

func TestRunEmptyDatabase(t *testing.T) {
	store := newMemStore()
	reporter := &recordingReporter{}
	res, err := newProvisioner(testDefinition(), store, Options{StopOnIndexError: true, Reporter: reporter}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Done, res.State)
	assert.Equal(t, []State{Connecting, EnsuringCollections, EnsuringIndexes, BootstrappingAdmin, Reporting, Done}, res.Transitions)
	assert.Equal(t, []string{"users", "products", "orders", "admins"}, res.CollectionsCreated)
	assert.Empty(t, res.CollectionsExisting)
	assert.Len(t, res.IndexesCreated, 5)
	assert.Equal(t, 0, res.IndexesPresent)
	assert.True(t, res.Succeeded(false))
	assert.True(t, store.closed)

	require.Len(t, store.admins["admins"], 1)
	rec := store.admins["admins"][0]
	assert.Equal(t, "admin", rec.Name)
	assert.Equal(t, testHash, rec.Password)
	assert.Equal(t, time.UTC, rec.CreatedAt.Location())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
	assert.Equal(t, AdminInserted, res.Admin.Outcome)

	assert.Same(t, res, reporter.reported)
	assert.Equal(t, Reporting, reporter.state)
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	def := testDefinition()

	_, err := newProvisioner(def, store, DefaultOptions()).Run(context.Background())
	require.NoError(t, err)
	before := len(store.calls)

	res, err := newProvisioner(def, store, DefaultOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.CollectionsCreated)
	assert.Equal(t, []string{"users", "products", "orders", "admins"}, res.CollectionsExisting)
	assert.Empty(t, res.IndexesCreated)
	assert.Equal(t, 5, res.IndexesPresent)
	assert.Equal(t, AdminKept, res.Admin.Outcome)
	assert.Len(t, store.admins["admins"], 1)
	assert.Equal(t, []string{"inspect"}, store.calls[before:])
}

func TestRunKeepsExistingCollections(t *testing.T) {
	store := newMemStore()
	store.collections["users"] = []schema.Index{{Name: "email_1", Keys: []schema.Key{key("email", schema.Asc)}, Unique: true}}
	store.collections["legacy"] = nil

	res, err := newProvisioner(testDefinition(), store, DefaultOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"users"}, res.CollectionsExisting)
	assert.Equal(t, []string{"products", "orders", "admins"}, res.CollectionsCreated)
	assert.Equal(t, 1, res.IndexesPresent)
	assert.Len(t, res.IndexesCreated, 4)
	assert.Contains(t, store.collections, "legacy")
}

func TestRunInsertIfAbsentKeepsAdmins(t *testing.T) {
	store := newMemStore()
	store.collections["admins"] = nil
	existing := []schema.AdminRecord{
		{Name: "old-1", Password: "$2a$10$existinghashforoldadminone0000000000000000000000000"},
		{Name: "old-2", Password: "$2a$10$existinghashforoldadmintwo0000000000000000000000000"},
	}
	store.admins["admins"] = append([]schema.AdminRecord(nil), existing...)

	res, err := newProvisioner(testDefinition(), store, DefaultOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, AdminKept, res.Admin.Outcome)
	assert.Equal(t, int64(2), res.Admin.Existing)
	assert.Equal(t, existing, store.admins["admins"])
}

func TestRunResetToSingle(t *testing.T) {
	store := newMemStore()
	store.collections["admins"] = nil
	store.admins["admins"] = []schema.AdminRecord{{Name: "old-1"}, {Name: "old-2"}}

	def := testDefinition()
	def.Admin.Policy = schema.ResetToSingle

	for i := 0; i < 2; i++ {
		res, err := newProvisioner(def, store, DefaultOptions()).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, AdminReset, res.Admin.Outcome)
		require.Len(t, store.admins["admins"], 1)
		assert.Equal(t, "admin", store.admins["admins"][0].Name)
	}
}

func TestRunStopsOnIndexConflict(t *testing.T) {
	store := newMemStore()
	store.collections["users"] = []schema.Index{{Name: "email_1", Keys: []schema.Key{key("email", schema.Asc)}}}

	res, err := newProvisioner(testDefinition(), store, Options{StopOnIndexError: true}).Run(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrIndexConflict))
	var conflict *IndexConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "users", conflict.Collection)
	assert.Equal(t, "email_1", conflict.Index)

	assert.Equal(t, Failed, res.State)
	assert.Equal(t, EnsuringIndexes, res.FailedAt)
	assert.Equal(t, []string{"products", "orders", "admins"}, res.CollectionsCreated)
	assert.Empty(t, res.IndexesCreated)
	assert.Empty(t, store.admins["admins"])
	assert.True(t, store.closed)
}

func TestRunContinuesPastIndexFailures(t *testing.T) {
	store := newMemStore()
	store.collections["users"] = []schema.Index{{Name: "email_1", Keys: []schema.Key{key("email", schema.Asc)}}}
	store.failCreateIndex["orders.created_at_-1"] = errors.New("disk full")

	res, err := newProvisioner(testDefinition(), store, Options{StopOnIndexError: false}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Done, res.State)
	require.Len(t, res.IndexFailures, 2)
	assert.True(t, res.IndexFailures[0].Conflict)
	assert.False(t, res.IndexFailures[1].Conflict)
	var idxErr *IndexError
	assert.ErrorAs(t, res.IndexFailures[1].Err, &idxErr)

	assert.Len(t, res.IndexesCreated, 3)
	assert.Len(t, store.admins["admins"], 1)
	assert.False(t, res.Succeeded(false))
	assert.False(t, res.Succeeded(true))
	assert.ErrorContains(t, res.IndexErr(), "disk full")
}

func TestRunAllowsOnlyConflicts(t *testing.T) {
	store := newMemStore()
	store.collections["users"] = []schema.Index{{Name: "email_1", Keys: []schema.Key{key("email", schema.Asc)}}}

	res, err := newProvisioner(testDefinition(), store, Options{StopOnIndexError: false}).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Succeeded(false))
	assert.True(t, res.Succeeded(true))
}

func TestRunConnectionFailure(t *testing.T) {
	p := New(testDefinition(), AdminSeed{Name: "admin", PasswordHash: testHash},
		func(ctx context.Context) (Store, error) { return nil, errors.New("server selection timeout") },
		DefaultOptions())

	res, err := p.Run(context.Background())
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorContains(t, err, "server selection timeout")
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, Connecting, res.FailedAt)
	assert.Equal(t, []State{Connecting, Failed}, res.Transitions)
}

func TestRunAdminFailure(t *testing.T) {
	store := newMemStore()
	store.failInsertAdmin = errors.New("not authorized")

	res, err := newProvisioner(testDefinition(), store, DefaultOptions()).Run(context.Background())
	var adminErr *AdminBootstrapError
	require.ErrorAs(t, err, &adminErr)
	assert.Equal(t, "insert", adminErr.Op)
	assert.Equal(t, BootstrappingAdmin, res.FailedAt)
	assert.Len(t, res.IndexesCreated, 5)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newProvisioner(testDefinition(), newMemStore(), DefaultOptions()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, res.State)
}

func TestRunConcurrentCollectionCreate(t *testing.T) {
	store := &racingStore{memStore: newMemStore()}

	res, err := newProvisioner(testDefinition(), store.memStore, DefaultOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.CollectionsCreated, 4)

	p := New(testDefinition(), AdminSeed{Name: "admin", PasswordHash: testHash},
		func(ctx context.Context) (Store, error) { return store, nil }, DefaultOptions())
	res, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "products", "orders", "admins"}, res.CollectionsExisting)
}

// racingStore hides existing collections from Inspect, as if another
// process created them between inspection and creation.
type racingStore struct {
	*memStore
}

func (r *racingStore) Inspect(ctx context.Context) (*introspect.State, error) {
	return introspect.NewState("test"), nil
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "EnsuringIndexes", EnsuringIndexes.String())
	assert.Equal(t, "Unknown", State(42).String())
	assert.True(t, Done.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, Reporting.Terminal())
	assert.Equal(t, Done, Done.next())
}
