package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hotvault/hotvault-backend/internal/app/model"
	"github.com/hotvault/hotvault-backend/internal/app/repository"
	"github.com/hotvault/hotvault-backend/internal/db"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	uploaded  []string
	deleted   []string
	uploadErr error
}

func (f *fakeStorage) Upload(ctx context.Context, r io.Reader, filename, contentType string) (*model.ImageDescriptor, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("hotwheels/%d-%s", len(f.uploaded), filename)
	f.uploaded = append(f.uploaded, key)
	return &model.ImageDescriptor{
		PublicID: key,
		URL:      "https://cdn.test/" + key,
		Width:    10,
		Height:   5,
		Format:   "png",
	}, nil
}

func (f *fakeStorage) Delete(ctx context.Context, publicID string) error {
	f.deleted = append(f.deleted, publicID)
	return nil
}

func setupHotwheelServiceTest(t *testing.T) (HotwheelService, *fakeStorage) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	storage := &fakeStorage{}
	return NewHotwheelService(repository.NewHotwheelRepository(testDB), storage), storage
}

func sampleInput(barcode string) CreateHotwheelInput {
	return CreateHotwheelInput{
		Model:        "Twin Mill",
		Year:         2019,
		Name:         "Treasure Hunt",
		PurchaseDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Barcode:      barcode,
	}
}

func imageUpload(name string) *ImageUpload {
	return &ImageUpload{Reader: strings.NewReader("img"), Filename: name, ContentType: "image/png"}
}

func TestHotwheelService_CreateWithImage(t *testing.T) {
	svc, storage := setupHotwheelServiceTest(t)
	ctx := context.Background()

	created, err := svc.CreateHotwheel(ctx, sampleInput("BC-1"), imageUpload("car.png"))
	require.NoError(t, err)
	require.NotNil(t, created.Image)
	assert.Equal(t, "hotwheels/0-car.png", created.Image.PublicID)

	found, err := svc.GetHotwheel(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Image)
	assert.Equal(t, 10, found.Image.Width)
	assert.Equal(t, "BC-1", found.Barcode)
	assert.Len(t, storage.uploaded, 1)
}

func TestHotwheelService_CreateDuplicateBarcodeSkipsUpload(t *testing.T) {
	svc, storage := setupHotwheelServiceTest(t)
	ctx := context.Background()

	_, err := svc.CreateHotwheel(ctx, sampleInput("BC-1"), nil)
	require.NoError(t, err)

	_, err = svc.CreateHotwheel(ctx, sampleInput(" BC-1 "), imageUpload("car.png"))
	assert.ErrorIs(t, err, repository.ErrDuplicateBarcode)
	assert.Equal(t, 409, apperrors.StatusOf(err))
	assert.Empty(t, storage.uploaded)
}

func TestHotwheelService_CreateValidation(t *testing.T) {
	svc, storage := setupHotwheelServiceTest(t)

	input := sampleInput("BC-1")
	input.Year = 1800
	_, err := svc.CreateHotwheel(context.Background(), input, imageUpload("car.png"))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Empty(t, storage.uploaded)
}

func TestHotwheelService_CreateUploadFailure(t *testing.T) {
	svc, storage := setupHotwheelServiceTest(t)
	storage.uploadErr = errors.New("s3 down")

	_, err := svc.CreateHotwheel(context.Background(), sampleInput("BC-1"), imageUpload("car.png"))
	assert.EqualError(t, err, "s3 down")

	all, err := svc.ListHotwheels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHotwheelService_ImageWithoutStorage(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	svc := NewHotwheelService(repository.NewHotwheelRepository(testDB))

	_, err = svc.CreateHotwheel(context.Background(), sampleInput("BC-1"), imageUpload("car.png"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	created, err := svc.CreateHotwheel(context.Background(), sampleInput("BC-1"), nil)
	require.NoError(t, err)
	assert.Nil(t, created.Image)
}

func TestHotwheelService_Update(t *testing.T) {
	svc, storage := setupHotwheelServiceTest(t)
	ctx := context.Background()

	created, err := svc.CreateHotwheel(ctx, sampleInput("BC-1"), imageUpload("old.png"))
	require.NoError(t, err)
	_, err = svc.CreateHotwheel(ctx, sampleInput("BC-2"), nil)
	require.NoError(t, err)

	newName := "Super Treasure Hunt"
	updated, err := svc.UpdateHotwheel(ctx, created.ID, HotwheelPatch{Name: &newName}, imageUpload("new.png"))
	require.NoError(t, err)
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, "Twin Mill", updated.Model)
	assert.Equal(t, "hotwheels/1-new.png", updated.Image.PublicID)
	assert.Equal(t, []string{"hotwheels/0-old.png"}, storage.deleted)

	taken := "BC-2"
	_, err = svc.UpdateHotwheel(ctx, created.ID, HotwheelPatch{Barcode: &taken}, nil)
	assert.ErrorIs(t, err, repository.ErrDuplicateBarcode)

	badYear := 3000
	_, err = svc.UpdateHotwheel(ctx, created.ID, HotwheelPatch{Year: &badYear}, nil)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	stored, err := svc.GetHotwheel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "BC-1", stored.Barcode)
	assert.Equal(t, 2019, stored.Year)
}

func TestHotwheelService_GetAndDelete(t *testing.T) {
	svc, storage := setupHotwheelServiceTest(t)
	ctx := context.Background()

	_, err := svc.GetHotwheel(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidHotwheelID)
	assert.Equal(t, 400, apperrors.StatusOf(err))

	_, err = svc.GetHotwheel(ctx, "0c6b6a6e-2d0f-4f6e-9d43-5b7e3c2a1f00")
	assert.ErrorIs(t, err, repository.ErrHotwheelNotFound)

	created, err := svc.CreateHotwheel(ctx, sampleInput("BC-1"), imageUpload("car.png"))
	require.NoError(t, err)

	found, err := svc.GetHotwheel(ctx, "{"+strings.ToUpper(created.ID)+"}")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	require.NoError(t, svc.DeleteHotwheel(ctx, strings.ToUpper(created.ID)))
	assert.Equal(t, []string{created.Image.PublicID}, storage.deleted)
	assert.ErrorIs(t, svc.DeleteHotwheel(ctx, created.ID), repository.ErrHotwheelNotFound)
}

func TestHotwheelService_Import(t *testing.T) {
	svc, _ := setupHotwheelServiceTest(t)
	ctx := context.Background()

	_, err := svc.CreateHotwheel(ctx, sampleInput("EXISTING"), nil)
	require.NoError(t, err)

	result, err := svc.ImportHotwheels(ctx, []CreateHotwheelInput{
		sampleInput("A"),
		sampleInput("EXISTING"),
		sampleInput("B"),
		sampleInput("A"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Skipped)

	all, err := svc.ListHotwheels(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHotwheelService_ImportStopsOnInvalidRow(t *testing.T) {
	svc, _ := setupHotwheelServiceTest(t)

	bad := sampleInput("C")
	bad.Name = ""
	result, err := svc.ImportHotwheels(context.Background(), []CreateHotwheelInput{sampleInput("A"), bad, sampleInput("B")})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, 1, result.Created)
}
