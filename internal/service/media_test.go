package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warbler/internal/model"
)

type fakeObjectStore struct {
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	deletes []string
	putErr  error
}

func (f *fakeObjectStore) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(in.Body); err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, buf.Bytes())
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectStore) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

type memFile struct{ *bytes.Reader }

func (memFile) Close() error { return nil }

func pngUpload(t *testing.T, width, height int, contentType string) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(width, height, color.NRGBA{R: 200, A: 255}), imaging.PNG))

	header := &multipart.FileHeader{
		Filename: "upload.png",
		Size:     int64(buf.Len()),
		Header:   textproto.MIMEHeader{},
	}
	if contentType != "" {
		header.Header.Set("Content-Type", contentType)
	}
	return memFile{bytes.NewReader(buf.Bytes())}, header
}

// rawUpload wraps arbitrary bytes as a multipart upload declared as contentType.
func rawUpload(data []byte, contentType string) (multipart.File, *multipart.FileHeader) {
	header := &multipart.FileHeader{
		Filename: "upload",
		Size:     int64(len(data)),
		Header:   textproto.MIMEHeader{"Content-Type": {contentType}},
	}
	return memFile{bytes.NewReader(data)}, header
}

// webpPixel is a 1x1 lossless WebP image.
const webpPixel = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

func decodedSize(t *testing.T, data []byte) image.Point {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Size()
}

func TestMediaService_UploadAvatar(t *testing.T) {
	store := &fakeObjectStore{}
	media := newMediaService(store, "warbler", "https://cdn.example.com/")
	file, header := pngUpload(t, 640, 480, model.ContentTypePNG)

	result, err := media.UploadAvatar(context.Background(), file, header)

	require.NoError(t, err)
	require.Len(t, store.puts, 1)
	put := store.puts[0]
	assert.Equal(t, "warbler", aws.ToString(put.Bucket))
	assert.Equal(t, model.ContentTypeJPEG, aws.ToString(put.ContentType))
	assert.True(t, strings.HasPrefix(result.Key, "avatars/"))
	assert.True(t, strings.HasSuffix(result.Key, ".jpg"))
	assert.Equal(t, "https://cdn.example.com/"+result.Key, result.URL)
	assert.Equal(t, image.Pt(model.AvatarWidth, model.AvatarHeight), decodedSize(t, store.bodies[0]))
}

func TestMediaService_UploadHeader(t *testing.T) {
	store := &fakeObjectStore{}
	media := newMediaService(store, "warbler", "https://cdn.example.com")
	// No declared type: sniffed from the bytes.
	file, header := pngUpload(t, 300, 300, "")

	result, err := media.UploadHeader(context.Background(), file, header)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Key, "headers/"))
	assert.Equal(t, image.Pt(model.HeaderWidth, model.HeaderHeight), decodedSize(t, store.bodies[0]))
}

func TestMediaService_UploadAvatar_WebP(t *testing.T) {
	data, err := base64.StdEncoding.DecodeString(webpPixel)
	require.NoError(t, err)
	store := &fakeObjectStore{}
	media := newMediaService(store, "warbler", "https://cdn.example.com")
	file, header := rawUpload(data, model.ContentTypeWebP)

	result, err := media.UploadAvatar(context.Background(), file, header)

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.Key, ".jpg"))
	assert.Equal(t, image.Pt(model.AvatarWidth, model.AvatarHeight), decodedSize(t, store.bodies[0]))
}

func TestMediaService_Upload_Rejects(t *testing.T) {
	t.Run("not an image despite declared type", func(t *testing.T) {
		store := &fakeObjectStore{}
		media := newMediaService(store, "warbler", "https://cdn.example.com")
		file, header := rawUpload([]byte("just some text, not a png"), model.ContentTypePNG)

		_, err := media.UploadAvatar(context.Background(), file, header)

		assert.ErrorIs(t, err, model.ErrInvalidImageType)
		assert.Empty(t, store.puts)
	})

	t.Run("corrupt webp", func(t *testing.T) {
		store := &fakeObjectStore{}
		media := newMediaService(store, "warbler", "https://cdn.example.com")
		file, header := rawUpload([]byte("RIFF\x10\x00\x00\x00WEBPVP8 garbage"), model.ContentTypeWebP)

		_, err := media.UploadHeader(context.Background(), file, header)

		assert.ErrorIs(t, err, model.ErrInvalidImageType)
		assert.Empty(t, store.puts)
	})

	t.Run("wrong type", func(t *testing.T) {
		store := &fakeObjectStore{}
		media := newMediaService(store, "warbler", "https://cdn.example.com")
		file, header := pngUpload(t, 10, 10, "text/plain")

		_, err := media.UploadAvatar(context.Background(), file, header)

		assert.ErrorIs(t, err, model.ErrInvalidImageType)
		assert.Empty(t, store.puts)
	})

	t.Run("too large", func(t *testing.T) {
		media := newMediaService(&fakeObjectStore{}, "warbler", "https://cdn.example.com")
		file, header := pngUpload(t, 10, 10, model.ContentTypePNG)
		header.Size = model.MaxAvatarSizeBytes + 1

		_, err := media.UploadAvatar(context.Background(), file, header)

		assert.ErrorIs(t, err, model.ErrFileTooLarge)
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("r2 down")
		media := newMediaService(&fakeObjectStore{putErr: boom}, "warbler", "https://cdn.example.com")
		file, header := pngUpload(t, 10, 10, model.ContentTypePNG)

		_, err := media.UploadAvatar(context.Background(), file, header)

		assert.ErrorIs(t, err, boom)
	})
}

func TestMediaService_Delete(t *testing.T) {
	store := &fakeObjectStore{}
	media := newMediaService(store, "warbler", "https://cdn.example.com")

	require.NoError(t, media.Delete(context.Background(), "https://cdn.example.com/avatars/abc.jpg"))
	require.NoError(t, media.Delete(context.Background(), "/static/images/default-pic.svg"))
	require.NoError(t, media.Delete(context.Background(), "https://elsewhere.com/avatars/abc.jpg"))

	assert.Equal(t, []string{"avatars/abc.jpg"}, store.deletes)
}
