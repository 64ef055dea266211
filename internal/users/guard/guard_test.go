package guard_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aussiebroadwan/haulage/internal/users/guard"
	"github.com/aussiebroadwan/haulage/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	usernames map[string]bool
	ids       map[int64]bool
	err       error
	calls     int
}

func (f *fakeLookup) ExistsByUsername(_ context.Context, username string) (bool, error) {
	f.calls++
	return f.usernames[username], f.err
}

func (f *fakeLookup) ExistsByID(_ context.Context, id int64) (bool, error) {
	f.calls++
	return f.ids[id], f.err
}

type createReq struct{ Username string }

func (r createReq) GetUsername() string { return r.Username }

func newLookup() *fakeLookup {
	return &fakeLookup{
		usernames: map[string]bool{"bob": true},
		ids:       map[int64]bool{7: true},
	}
}

func TestByUsername(t *testing.T) {
	t.Run("existing username blocks create", func(t *testing.T) {
		lookup := newLookup()
		called := 0
		create := guard.Wrap(guard.Policy{Mode: guard.ByUsername, Operation: "createUser", Lookup: lookup},
			func(context.Context, createReq) (int64, error) { called++; return 1, nil })

		id, err := create(context.Background(), createReq{Username: "bob"})
		require.ErrorIs(t, err, guard.ErrAlreadyExists)
		require.Zero(t, id)
		require.Zero(t, called)
		require.Equal(t, 1, lookup.calls)

		var ae *guard.AlreadyExistsError
		require.ErrorAs(t, err, &ae)
		require.Equal(t, "bob", ae.Username)
	})

	t.Run("new username runs once", func(t *testing.T) {
		lookup := newLookup()
		called := 0
		create := guard.Wrap(guard.Policy{Mode: guard.ByUsername, Operation: "createUser", Lookup: lookup},
			func(context.Context, createReq) (int64, error) { called++; return 2, nil })

		id, err := create(context.Background(), createReq{Username: "alice"})
		require.NoError(t, err)
		require.EqualValues(t, 2, id)
		require.Equal(t, 1, called)
		require.Equal(t, 1, lookup.calls)
	})
}

func TestByID(t *testing.T) {
	t.Run("missing id blocks delete", func(t *testing.T) {
		called := 0
		del := guard.WrapErr(guard.Policy{Mode: guard.ByID, Operation: "deleteUser", Lookup: newLookup()},
			func(context.Context, int64) error { called++; return nil })

		err := del(context.Background(), 42)
		require.ErrorIs(t, err, guard.ErrNotFound)
		require.Zero(t, called)

		var nf *guard.NotFoundError
		require.ErrorAs(t, err, &nf)
		require.EqualValues(t, 42, nf.ID)
		require.Equal(t, "deleteUser", nf.Operation)
		require.Equal(t, "deleteUser: user 42 not found", err.Error())
	})

	t.Run("present id runs update once", func(t *testing.T) {
		called := 0
		update := guard.Wrap2(guard.Policy{Mode: guard.ByID, Operation: "updateUser", Lookup: newLookup()},
			func(_ context.Context, id int64, name string) (string, error) { called++; return name, nil })

		got, err := update(context.Background(), 7, "Kim")
		require.NoError(t, err)
		require.Equal(t, "Kim", got)
		require.Equal(t, 1, called)
	})

	t.Run("missing id blocks update", func(t *testing.T) {
		called := 0
		update := guard.Wrap2(guard.Policy{Mode: guard.ByID, Operation: "updateUser", Lookup: newLookup()},
			func(context.Context, int64, string) (string, error) { called++; return "", nil })

		_, err := update(context.Background(), 8, "Kim")
		var nf *guard.NotFoundError
		require.ErrorAs(t, err, &nf)
		require.Equal(t, "updateUser", nf.Operation)
		require.Zero(t, called)
	})
}

func TestShapeMismatchFailsOpen(t *testing.T) {
	var buf bytes.Buffer
	ctx := slogx.WithContext(context.Background(), slog.New(slogx.NewHandler(slogx.Config{Output: &buf})))

	tests := []struct {
		name string
		mode guard.Mode
		arg  any
	}{
		{"username mode given id", guard.ByUsername, int64(7)},
		{"id mode given request", guard.ByID, createReq{Username: "bob"}},
		{"id mode given string", guard.ByID, "42"},
		{"unknown mode", guard.Mode(0), int64(42)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			lookup := newLookup()
			called := 0
			op := guard.WrapErr(guard.Policy{Mode: tt.mode, Operation: "op", Lookup: lookup},
				func(context.Context, any) error { called++; return nil })

			require.NoError(t, op(ctx, tt.arg))
			require.Equal(t, 1, called)
			require.Zero(t, lookup.calls, "no lookup without a usable argument")
			require.Contains(t, buf.String(), "existence guard skipped")
			require.Contains(t, buf.String(), `"level":"WARN"`)
		})
	}
}

func TestLookupErrorBlocks(t *testing.T) {
	down := errors.New("db down")
	lookup := newLookup()
	lookup.err = down
	called := 0
	op := guard.WrapErr(guard.Policy{Mode: guard.ByID, Operation: "deleteUser", Lookup: lookup},
		func(context.Context, int64) error { called++; return nil })

	err := op(context.Background(), 7)
	require.ErrorIs(t, err, down)
	require.Zero(t, called)
}

func TestOperationErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	op := guard.WrapErr(guard.Policy{Mode: guard.ByID, Operation: "deleteUser", Lookup: newLookup()},
		func(context.Context, int64) error { return boom })
	require.ErrorIs(t, op(context.Background(), 7), boom)
}

func TestModeString(t *testing.T) {
	require.Equal(t, "by-username", guard.ByUsername.String())
	require.Equal(t, "by-id", guard.ByID.String())
	require.Equal(t, "Mode(9)", guard.Mode(9).String())
}
