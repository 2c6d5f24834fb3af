package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	name    string
	failErr error
	log     *[]string
}

func (f *fakeModule) Name() string { return f.name }

func (f *fakeModule) Start(ctx context.Context) error {
	if f.failErr != nil {
		return f.failErr
	}
	*f.log = append(*f.log, "start "+f.name)
	return nil
}

func (f *fakeModule) Stop(ctx context.Context) {
	*f.log = append(*f.log, "stop "+f.name)
}

func TestManagerStartsInOrderAndStopsInReverse(t *testing.T) {
	var calls []string
	mgr := NewManager(&fakeModule{name: "a", log: &calls}, nil, &fakeModule{name: "b", log: &calls})
	require.NoError(t, mgr.Add(&fakeModule{name: "c", log: &calls}))
	assert.Equal(t, []string{"a", "b", "c"}, mgr.Names())

	require.NoError(t, mgr.Start(context.Background()))
	mgr.Stop(context.Background())

	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}, calls)
}

func TestManagerRollsBackOnFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	mgr := NewManager(
		&fakeModule{name: "a", log: &calls},
		&fakeModule{name: "b", log: &calls, failErr: boom},
		&fakeModule{name: "c", log: &calls},
	)

	err := mgr.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "module b failed")
	assert.Equal(t, []string{"start a", "stop a"}, calls)

	mgr.Stop(context.Background())
	assert.Equal(t, []string{"start a", "stop a"}, calls, "stop after failed start is a no-op")
}

func TestManagerRejectsLateAdd(t *testing.T) {
	var calls []string
	mgr := NewManager(&fakeModule{name: "a", log: &calls})
	require.NoError(t, mgr.Start(context.Background()))

	assert.Error(t, mgr.Add(&fakeModule{name: "b", log: &calls}))
	assert.Error(t, mgr.Start(context.Background()))
}
