package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gauntletsec/gauntlet/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	outputs      Outputs
	provisionErr error
	destroyErr   error
	destroyCalls int
	lastVars     map[string]string
	lastTimeout  time.Duration
}

func (f *fakeBackend) Provision(_ context.Context, _ string, vars map[string]string, timeout time.Duration) (Outputs, error) {
	f.lastVars = vars
	f.lastTimeout = timeout
	return f.outputs, f.provisionErr
}

func (f *fakeBackend) Destroy(_ context.Context, _ string) error {
	f.destroyCalls++
	return f.destroyErr
}

func TestProvision_SuccessPersistsRecord(t *testing.T) {
	records := t.TempDir()
	workspace := t.TempDir()
	be := &fakeBackend{outputs: Outputs{
		OutputPublicIP:  "198.51.100.7",
		OutputSSHUser:   "ubuntu",
		OutputZapAPIURL: "http://198.51.100.7:8080",
	}}
	d := &Driver{Backend: be, RecordsDir: records}

	st, err := d.Provision(context.Background(), ProvisionRequest{
		Provider:  "aws",
		ModuleDir: workspace,
		Vars:      map[string]string{"region": "us-east-1"},
		APIKey:    "k3y",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://198.51.100.7:8080", st.EndpointURL)
	assert.Equal(t, DefaultProvisionTimeout, be.lastTimeout)

	found, _, err := Discover(records)
	require.NoError(t, err)
	assert.Equal(t, st.Timestamp, found.Timestamp)
	assert.Equal(t, "ubuntu", found.Outputs[OutputSSHUser])
}

func TestProvision_FailureCarriesPartialOutputs(t *testing.T) {
	be := &fakeBackend{
		outputs:      Outputs{"instance_id": "i-123"},
		provisionErr: errors.New("apply timed out after 900s"),
	}
	d := &Driver{Backend: be, RecordsDir: t.TempDir()}

	st, err := d.Provision(context.Background(), ProvisionRequest{Provider: "aws", ModuleDir: t.TempDir()})
	require.Error(t, err)

	var perr *errs.ProvisioningError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "aws", perr.Provider)
	assert.Equal(t, "i-123", perr.PartialOutputs["instance_id"])

	// The partial state must still be teardown-able without error.
	require.NoError(t, d.Teardown(context.Background(), st))
	assert.Equal(t, 1, be.destroyCalls)
}

func TestProvision_FailurePersistsDiscoverableRecord(t *testing.T) {
	records := t.TempDir()
	workspace := t.TempDir()
	be := &fakeBackend{
		outputs:      Outputs{"instance_id": "i-123"},
		provisionErr: errors.New("apply timed out after 900s"),
	}
	d := &Driver{Backend: be, RecordsDir: records}

	st, err := d.Provision(context.Background(), ProvisionRequest{Provider: "aws", ModuleDir: workspace})
	require.Error(t, err)

	// Orphaned compute stays discoverable until an explicit destroy.
	found, _, derr := Discover(records)
	require.NoError(t, derr)
	assert.Equal(t, "i-123", found.Outputs["instance_id"])

	require.NoError(t, d.Teardown(context.Background(), st))
	_, _, derr = Discover(records)
	assert.True(t, errors.Is(derr, ErrNoState), "destroyed partial infrastructure must not linger in discovery")
}

func TestTeardown_Idempotent(t *testing.T) {
	records := t.TempDir()
	workspace := t.TempDir()
	be := &fakeBackend{outputs: Outputs{OutputPublicIP: "203.0.113.5"}}
	d := &Driver{Backend: be, RecordsDir: records}

	st, err := d.Provision(context.Background(), ProvisionRequest{Provider: "gcp", ModuleDir: workspace})
	require.NoError(t, err)

	require.NoError(t, d.Teardown(context.Background(), st))
	require.NoError(t, d.Teardown(context.Background(), st))
	require.NoError(t, d.Teardown(context.Background(), st))
}

func TestTeardown_RemovesRecordFromDiscovery(t *testing.T) {
	records := t.TempDir()
	workspace := t.TempDir()
	be := &fakeBackend{outputs: Outputs{}}
	d := &Driver{Backend: be, RecordsDir: records}

	st, err := d.Provision(context.Background(), ProvisionRequest{Provider: "aws", ModuleDir: workspace})
	require.NoError(t, err)
	require.NoError(t, d.Teardown(context.Background(), st))

	_, _, err = Discover(records)
	assert.True(t, errors.Is(err, ErrNoState), "torn down infrastructure must not be discoverable")
}

func TestTeardown_EmptyStateIsNoOp(t *testing.T) {
	d := &Driver{Backend: &fakeBackend{}, RecordsDir: t.TempDir()}
	require.NoError(t, d.Teardown(context.Background(), State{}))
}

func TestTeardown_BackendFailureIsTeardownError(t *testing.T) {
	workspace := t.TempDir()
	be := &fakeBackend{destroyErr: errors.New("destroy failed")}
	d := &Driver{Backend: be, RecordsDir: t.TempDir()}

	err := d.Teardown(context.Background(), State{Provider: "aws", WorkspaceDir: workspace, Timestamp: "2026-08-25T10:00:00Z"})
	var terr *errs.TeardownError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "aws", terr.Provider)
}
