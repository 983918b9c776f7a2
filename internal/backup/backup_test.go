package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	setservice "geoset/internal/sets/service"
	"geoset/internal/sets/store"
	dErrors "geoset/pkg/domain-errors"
	"geoset/pkg/requestcontext"
)

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	svc := setservice.New(st)

	_, err := svc.CreateSet(ctx, "fl", "Florida", []string{"12086", "12011"})
	require.NoError(t, err)
	_, err = svc.AddToSet(ctx, "fl", []string{"12099"}, "add Palm Beach")
	require.NoError(t, err)
	_, err = svc.CreateSet(ctx, "ga", "Georgia", []string{"13001"})
	require.NoError(t, err)
	return st
}

func dumpAll(t *testing.T, st *store.Memory) (versions, members, changes any) {
	t.Helper()
	ctx := context.Background()
	v, err := st.DumpVersions(ctx)
	require.NoError(t, err)
	m, err := st.DumpMembers(ctx)
	require.NoError(t, err)
	c, err := st.DumpChanges(ctx)
	require.NoError(t, err)
	return v, m, c
}

func TestBackupDocumentShape(t *testing.T) {
	st := seedStore(t)
	svc := New(st, nil)

	pinned := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), pinned)

	var buf bytes.Buffer
	require.NoError(t, svc.Backup(ctx, &buf))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, FormatVersion, doc.Metadata.Version)
	assert.Equal(t, pinned, doc.Metadata.CreatedAt)
	assert.Len(t, doc.Sets, 3)
	assert.Len(t, doc.Members, 6)
	assert.Len(t, doc.Changes, 1)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := seedStore(t)

	var buf bytes.Buffer
	require.NoError(t, New(source, nil).Backup(ctx, &buf))

	target := store.NewMemory()
	require.NoError(t, New(target, nil).Restore(ctx, &buf, false))

	wantV, wantM, wantC := dumpAll(t, source)
	gotV, gotM, gotC := dumpAll(t, target)
	assert.Equal(t, wantV, gotV)
	assert.Equal(t, wantM, gotM)
	assert.Equal(t, wantC, gotC)
}

func TestRestoreOverwriteReplacesState(t *testing.T) {
	ctx := context.Background()
	source := seedStore(t)

	var buf bytes.Buffer
	require.NoError(t, New(source, nil).Backup(ctx, &buf))

	target := store.NewMemory()
	_, err := setservice.New(target).CreateSet(ctx, "stale", "", []string{"99999"})
	require.NoError(t, err)

	require.NoError(t, New(target, nil).Restore(ctx, &buf, true))

	_, found, err := target.Current(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, found)

	wantV, _, _ := dumpAll(t, source)
	gotV, _, _ := dumpAll(t, target)
	assert.Equal(t, wantV, gotV)
}

func TestRestoreWithoutOverwriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	source := seedStore(t)

	var buf bytes.Buffer
	require.NoError(t, New(source, nil).Backup(ctx, &buf))
	raw := buf.Bytes()

	target := store.NewMemory()
	require.NoError(t, New(target, nil).Restore(ctx, bytes.NewReader(raw), false))
	require.NoError(t, New(target, nil).Restore(ctx, bytes.NewReader(raw), false))

	wantV, wantM, wantC := dumpAll(t, source)
	gotV, gotM, gotC := dumpAll(t, target)
	assert.Equal(t, wantV, gotV)
	assert.Equal(t, wantM, gotM)
	assert.Equal(t, wantC, gotC)
}

func TestRestoreConflictingCurrentVersion(t *testing.T) {
	ctx := context.Background()

	// The document carries fl v1 as current; the target already has a
	// different current version of fl.
	target := store.NewMemory()
	_, err := setservice.New(target).CreateSet(ctx, "fl", "", []string{"12099"})
	require.NoError(t, err)
	_, err = setservice.New(target).AddToSet(ctx, "fl", []string{"12057"}, "")
	require.NoError(t, err)

	doc := `{
		"metadata": {"created_at": "2026-08-31T00:00:00Z", "version": "1.0"},
		"sets": [{"set_name": "fl", "version": 3, "created_at": "2026-08-31T00:00:00Z", "updated_at": "2026-08-31T00:00:00Z", "is_current": true}],
		"members": [],
		"changes": []
	}`
	err = New(target, nil).Restore(ctx, strings.NewReader(doc), false)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestRestoreMalformedDocument(t *testing.T) {
	svc := New(store.NewMemory(), nil)
	err := svc.Restore(context.Background(), strings.NewReader("{not json"), false)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func TestRestoreUnsupportedFormatVersion(t *testing.T) {
	svc := New(store.NewMemory(), nil)
	doc := `{"metadata":{"created_at":"2026-08-31T00:00:00Z","version":"2.0"},"sets":[],"members":[],"changes":[]}`
	err := svc.Restore(context.Background(), strings.NewReader(doc), false)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func TestRestoreRejectsDanglingRows(t *testing.T) {
	svc := New(store.NewMemory(), nil)

	doc := `{
		"metadata": {"created_at": "2026-08-31T00:00:00Z", "version": "1.0"},
		"sets": [],
		"members": [{"set_name": "fl", "version": 1, "identifier": "12086"}],
		"changes": []
	}`
	err := svc.Restore(context.Background(), strings.NewReader(doc), false)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
	assert.Contains(t, err.Error(), "missing version")
}

func TestRestoreRejectsBadChangeType(t *testing.T) {
	svc := New(store.NewMemory(), nil)

	doc := `{
		"metadata": {"created_at": "2026-08-31T00:00:00Z", "version": "1.0"},
		"sets": [{"set_name": "fl", "version": 1, "created_at": "2026-08-31T00:00:00Z", "updated_at": "2026-08-31T00:00:00Z", "is_current": true}],
		"members": [],
		"changes": [{"set_name": "fl", "version": 1, "change_type": "MUTATE", "identifier": "12086", "changed_at": "2026-08-31T00:00:00Z"}]
	}`
	err := svc.Restore(context.Background(), strings.NewReader(doc), false)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
	assert.Contains(t, err.Error(), "unknown change type")
}
