package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelshare/internal/models"
	"pixelshare/internal/storage"
	"pixelshare/internal/tagging"
)

type fakeStore struct {
	mu     sync.Mutex
	photos map[uuid.UUID]*models.Photo
	// state accumulates every column written across updates.
	state   map[string]any
	updates []map[string]any
}

func newFakeStore(p *models.Photo) *fakeStore {
	return &fakeStore{
		photos: map[uuid.UUID]*models.Photo{p.ID: p},
		state:  map[string]any{},
	}
}

func (f *fakeStore) GetPhoto(_ context.Context, id uuid.UUID) (*models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return nil, fmt.Errorf("get photo: %w", storage.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdatePhotoFields(_ context.Context, id uuid.UUID, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.photos[id]; !ok {
		return errors.New("not found")
	}
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
		f.state[k] = v
	}
	f.updates = append(f.updates, cp)
	return nil
}

type fakeGateway struct {
	mu           sync.Mutex
	objects      map[string][]byte
	failDownload error
	failUpload   map[string]error // by variant
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{objects: map[string][]byte{}, failUpload: map[string]error{}}
}

func (g *fakeGateway) Upload(_ context.Context, photoID, variant string, data []byte) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failUpload[variant]; err != nil {
		return "", "", err
	}
	path := fmt.Sprintf("media/%s/%s.jpg", photoID, variant)
	g.objects[path] = data
	if variant == "original" {
		return path, "", nil
	}
	return path, "http://cdn.test/" + path, nil
}

func (g *fakeGateway) Download(_ context.Context, path string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDownload != nil {
		return nil, g.failDownload
	}
	data, ok := g.objects[path]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return data, nil
}

func (g *fakeGateway) SignedURL(path string, _ time.Duration) (string, error) {
	return "http://cdn.test/signed/" + path, nil
}

type fakeOracle struct {
	labels []string
	err    error
}

func (o *fakeOracle) Classify(_ context.Context, _ []byte, _ []string, _ float64) ([]string, error) {
	return o.labels, o.err
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 120, G: 30, B: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func testLogo() image.Image {
	return imaging.New(8, 8, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
}

type fixture struct {
	worker  *Worker
	store   *fakeStore
	gateway *fakeGateway
	oracle  *fakeOracle
	photoID uuid.UUID
}

func newFixture(t *testing.T, original []byte) *fixture {
	t.Helper()
	id := uuid.New()
	photo := &models.Photo{
		ID:           id,
		Status:       models.PhotoPending,
		OriginalPath: fmt.Sprintf("media/%s/original.jpg", id),
	}
	store := newFakeStore(photo)
	gateway := newFakeGateway()
	if original != nil {
		gateway.objects[photo.OriginalPath] = original
	}
	oracle := &fakeOracle{labels: []string{"group photo", "indoor event"}}
	worker := NewWorker(store, gateway, oracle, Options{Logo: testLogo()}, zerolog.Nop())
	return &fixture{worker: worker, store: store, gateway: gateway, oracle: oracle, photoID: id}
}

func (f *fixture) errs(t *testing.T) map[string]string {
	t.Helper()
	errs, ok := f.store.state["processing_errors"].(map[string]string)
	require.True(t, ok, "processing_errors must always be written")
	return errs
}

func TestProcessPhotoAllStagesSucceed(t *testing.T) {
	f := newFixture(t, testJPEG(t, 40, 30))

	require.NoError(t, f.worker.ProcessPhoto(context.Background(), f.photoID))

	assert.Equal(t, models.PhotoCompleted, f.store.state["status"])
	assert.Empty(t, f.errs(t))
	assert.Contains(t, f.store.state["thumbnail_url"], "thumbnail")
	assert.Contains(t, f.store.state["watermarked_url"], "watermarked")
	assert.Equal(t, 40, f.store.state["width"])
	assert.Equal(t, 30, f.store.state["height"])
	assert.Equal(t, []string{"group photo", "indoor event"}, f.store.state["auto_tags"])
}

func TestProcessPhotoMissingRowIsDropped(t *testing.T) {
	f := newFixture(t, testJPEG(t, 40, 30))

	err := f.worker.ProcessPhoto(context.Background(), uuid.New())
	require.NoError(t, err, "a job for a deleted photo must not be redelivered")
	assert.Empty(t, f.store.updates)
}

func TestProcessPhotoDownloadFailureIsFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.failDownload = errors.New("bucket unavailable")

	err := f.worker.ProcessPhoto(context.Background(), f.photoID)
	require.Error(t, err, "fatal failure surfaces for queue redelivery")

	assert.Equal(t, models.PhotoFailed, f.store.state["status"])
	assert.NotEmpty(t, f.errs(t)["download"])
	assert.NotContains(t, f.store.state, "thumbnail_url")
	assert.NotContains(t, f.store.state, "watermarked_url")
	assert.NotContains(t, f.store.state, "auto_tags")
}

func TestProcessPhotoVariantsFailureIsIsolated(t *testing.T) {
	f := newFixture(t, testJPEG(t, 40, 30))
	f.gateway.failUpload["watermarked"] = errors.New("upload refused")
	f.gateway.failUpload["thumbnail"] = errors.New("upload refused")

	require.NoError(t, f.worker.ProcessPhoto(context.Background(), f.photoID))

	assert.Equal(t, models.PhotoCompleted, f.store.state["status"], "partial success is success")
	errs := f.errs(t)
	assert.Contains(t, errs, "variants")
	assert.NotContains(t, errs, "tagging")
	assert.NotContains(t, errs, "metadata")
	assert.NotContains(t, f.store.state, "thumbnail_url")
	assert.NotContains(t, f.store.state, "watermarked_url")
	assert.Equal(t, []string{"group photo", "indoor event"}, f.store.state["auto_tags"])
	assert.Equal(t, 40, f.store.state["width"])
	assert.Equal(t, 30, f.store.state["height"])
}

func TestProcessPhotoPersistsSucceededVariantArtifact(t *testing.T) {
	f := newFixture(t, testJPEG(t, 40, 30))
	f.gateway.failUpload["watermarked"] = errors.New("upload refused")

	require.NoError(t, f.worker.ProcessPhoto(context.Background(), f.photoID))

	// Thumbnail succeeded, so its URL lands even though the stage failed.
	assert.Contains(t, f.store.state["thumbnail_url"], "thumbnail")
	assert.NotContains(t, f.store.state, "watermarked_url")
	assert.Contains(t, f.errs(t)["variants"], "watermarked")
	assert.NotContains(t, f.errs(t)["variants"], "thumbnail:")
}

func TestProcessPhotoTaggingFailureIsIsolated(t *testing.T) {
	f := newFixture(t, testJPEG(t, 40, 30))
	f.oracle.err = errors.New("model overloaded")

	require.NoError(t, f.worker.ProcessPhoto(context.Background(), f.photoID))

	assert.Equal(t, models.PhotoCompleted, f.store.state["status"])
	assert.NotEmpty(t, f.errs(t)["tagging"])
	assert.NotContains(t, f.store.state, "auto_tags")
	assert.Contains(t, f.store.state["thumbnail_url"], "thumbnail")
	assert.Equal(t, 40, f.store.state["width"])
}

func TestProcessPhotoUndecodableOriginalStillCompletes(t *testing.T) {
	f := newFixture(t, []byte("this is not an image"))

	require.NoError(t, f.worker.ProcessPhoto(context.Background(), f.photoID))

	assert.Equal(t, models.PhotoCompleted, f.store.state["status"])
	errs := f.errs(t)
	assert.NotEmpty(t, errs["variants"])
	assert.NotEmpty(t, errs["metadata"])
	assert.NotContains(t, errs, "tagging")
	assert.Equal(t, []string{"group photo", "indoor event"}, f.store.state["auto_tags"])
}

func TestProcessPhotoIsIdempotent(t *testing.T) {
	f := newFixture(t, testJPEG(t, 40, 30))

	require.NoError(t, f.worker.ProcessPhoto(context.Background(), f.photoID))
	firstTags := f.store.state["auto_tags"]
	firstThumb := f.gateway.objects[fmt.Sprintf("media/%s/thumbnail.jpg", f.photoID)]

	require.NoError(t, f.worker.ProcessPhoto(context.Background(), f.photoID))

	assert.Equal(t, models.PhotoCompleted, f.store.state["status"])
	assert.Empty(t, f.errs(t))
	assert.Equal(t, firstTags, f.store.state["auto_tags"])
	assert.Equal(t, 40, f.store.state["width"])
	assert.Equal(t, firstThumb, f.gateway.objects[fmt.Sprintf("media/%s/thumbnail.jpg", f.photoID)],
		"re-running overwrites with equivalent output")
}

func TestProcessPhotoTagsAreSubsetOfVocabulary(t *testing.T) {
	f := newFixture(t, testJPEG(t, 40, 30))
	f.oracle.labels = []string{"group photo", "made-up label", "indoor event"}

	require.NoError(t, f.worker.ProcessPhoto(context.Background(), f.photoID))

	tags, ok := f.store.state["auto_tags"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"group photo", "indoor event"}, tags)
	allowed := map[string]bool{}
	for _, v := range tagging.Vocabulary {
		allowed[v] = true
	}
	for _, tag := range tags {
		assert.True(t, allowed[tag], "tag %q not in vocabulary", tag)
	}
}

func TestProcessPhotoFinalWriteListsExactlyTouchedFields(t *testing.T) {
	f := newFixture(t, testJPEG(t, 40, 30))
	f.oracle.err = errors.New("down")

	require.NoError(t, f.worker.ProcessPhoto(context.Background(), f.photoID))

	final := f.store.updates[len(f.store.updates)-1]
	assert.NotContains(t, final, "auto_tags", "failed stage must not touch its column")
	assert.Contains(t, final, "status")
	assert.Contains(t, final, "processing_errors")
	assert.Contains(t, final, "thumbnail_url")
	assert.Contains(t, final, "watermarked_url")
	assert.Contains(t, final, "width")
	assert.Contains(t, final, "height")
	assert.Contains(t, final, "meta")
}
