package workers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhall-dev/studyhall/internal/docstore"
	"github.com/studyhall-dev/studyhall/internal/models"
	"github.com/studyhall-dev/studyhall/internal/store"
	"github.com/studyhall-dev/studyhall/internal/tasks"
)

// memDocs is an in-memory document store whose writes can be made to fail
type memDocs struct {
	mu      sync.Mutex
	failSet bool
	fields  map[string]map[string]any
}

func newMemDocs() *memDocs {
	return &memDocs{fields: make(map[string]map[string]any)}
}

func (d *memDocs) GetDocument(ctx context.Context, collection, key string) (docstore.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fields, ok := d.fields[collection+"/"+key]
	return docstore.Document{Exists: ok, Fields: fields}, nil
}

func (d *memDocs) SetDocument(ctx context.Context, collection, key string, fields map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSet {
		return errors.New("write timeout")
	}
	d.fields[collection+"/"+key] = fields
	return nil
}

func testOutbox(t *testing.T) *store.Outbox {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return store.NewOutbox(db)
}

func pendingWrite(t *testing.T, outbox *store.Outbox) *models.ProfileWrite {
	t.Helper()

	write := &models.ProfileWrite{
		UID:         "u1",
		Email:       "n@b.c",
		Role:        "student",
		DisplayName: "Nina",
		TeacherID:   "t-42",
	}
	require.NoError(t, outbox.Enqueue(write))
	return write
}

func TestHandleCompleteProfile(t *testing.T) {
	outbox := testOutbox(t)
	docs := newMemDocs()
	write := pendingWrite(t, outbox)

	task, err := tasks.NewCompleteProfileTask(write.ID)
	require.NoError(t, err)

	require.NoError(t, HandleCompleteProfile(context.Background(), task, outbox, docs, zerolog.Nop()))

	fields, ok := docs.fields["users/u1"]
	require.True(t, ok)
	assert.Equal(t, "student", fields["role"])
	assert.Equal(t, "Nina", fields["displayName"])
	assert.Equal(t, "t-42", fields["teacherId"])
	assert.NotEmpty(t, fields["createdAt"])

	got, err := outbox.Get(write.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)
}

func TestHandleCompleteProfileRecordsFailure(t *testing.T) {
	outbox := testOutbox(t)
	docs := newMemDocs()
	docs.failSet = true
	write := pendingWrite(t, outbox)

	task, err := tasks.NewCompleteProfileTask(write.ID)
	require.NoError(t, err)

	err = HandleCompleteProfile(context.Background(), task, outbox, docs, zerolog.Nop())
	require.Error(t, err)

	got, err := outbox.Get(write.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "write timeout", got.LastError)
	assert.Nil(t, got.CompletedAt)
}

func TestHandleCompleteProfileSkipsCompleted(t *testing.T) {
	outbox := testOutbox(t)
	docs := newMemDocs()
	write := pendingWrite(t, outbox)
	require.NoError(t, outbox.MarkCompleted(write.ID))

	task, err := tasks.NewCompleteProfileTask(write.ID)
	require.NoError(t, err)

	require.NoError(t, HandleCompleteProfile(context.Background(), task, outbox, docs, zerolog.Nop()))
	assert.Empty(t, docs.fields, "a completed write must not be replayed")
}

func TestHandleCompleteProfileOmitsEmptyTeacherID(t *testing.T) {
	outbox := testOutbox(t)
	docs := newMemDocs()

	write := &models.ProfileWrite{UID: "u2", Email: "t@b.c", Role: "teacher", DisplayName: "Tess"}
	require.NoError(t, outbox.Enqueue(write))

	task, err := tasks.NewCompleteProfileTask(write.ID)
	require.NoError(t, err)

	require.NoError(t, HandleCompleteProfile(context.Background(), task, outbox, docs, zerolog.Nop()))

	fields := docs.fields["users/u2"]
	require.NotNil(t, fields)
	_, hasTeacher := fields["teacherId"]
	assert.False(t, hasTeacher)
}
