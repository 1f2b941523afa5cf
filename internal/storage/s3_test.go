package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/audio-hub/audio-hub/internal/config"
)

// fakeObjectAPI 在内存中模拟 bucket，并记录最近一次 PutObject 的元数据。
type fakeObjectAPI struct {
	objects map[string][]byte
	lastPut *s3.PutObjectInput
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: make(map[string][]byte)}
}

func (f *fakeObjectAPI) HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

func (f *fakeObjectAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestS3(api objectAPI, cfg config.S3Config) *S3 {
	return &S3{api: api, cfg: cfg}
}

func TestS3ExistsAndSize(t *testing.T) {
	api := newFakeObjectAPI()
	api.objects["cafe.mp3"] = []byte("audio")
	backend := newTestS3(api, config.S3Config{Bucket: "audio"})

	exists, err := backend.Exists(context.Background(), "cafe.mp3")
	if err != nil {
		t.Fatalf("exists error: %v", err)
	}
	if !exists {
		t.Fatalf("object should exist")
	}

	if exists, _ := backend.Exists(context.Background(), "missing.mp3"); exists {
		t.Fatalf("missing object must not exist")
	}

	size, err := backend.Size(context.Background(), "cafe.mp3")
	if err != nil {
		t.Fatalf("size error: %v", err)
	}
	if size != 5 {
		t.Fatalf("size mismatch: %d", size)
	}

	if _, err := backend.Size(context.Background(), "missing.mp3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3WriteCarriesDeliveryMetadata(t *testing.T) {
	api := newFakeObjectAPI()
	backend := newTestS3(api, config.S3Config{Bucket: "audio"})

	w, err := backend.OpenWrite(context.Background(), "cafe.mp3", WriteOptions{
		ContentType:  "audio/mpeg",
		Filename:     "Artist - Title.mp3",
		ACL:          "public-read",
		StorageClass: "STANDARD",
	})
	if err != nil {
		t.Fatalf("open write error: %v", err)
	}
	if _, err := w.Write([]byte("audio bytes")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}

	if string(api.objects["cafe.mp3"]) != "audio bytes" {
		t.Fatalf("uploaded body mismatch")
	}
	if aws.ToString(api.lastPut.ContentType) != "audio/mpeg" {
		t.Fatalf("content type not forwarded")
	}
	if aws.ToString(api.lastPut.ContentDisposition) != `attachment; filename="Artist - Title.mp3"` {
		t.Fatalf("content disposition mismatch: %s", aws.ToString(api.lastPut.ContentDisposition))
	}
	if api.lastPut.ACL != types.ObjectCannedACL("public-read") {
		t.Fatalf("acl not forwarded")
	}
	if api.lastPut.StorageClass != types.StorageClass("STANDARD") {
		t.Fatalf("storage class not forwarded")
	}
}

func TestS3AbortSkipsUpload(t *testing.T) {
	api := newFakeObjectAPI()
	backend := newTestS3(api, config.S3Config{Bucket: "audio"})

	w, err := backend.OpenWrite(context.Background(), "cafe.mp3", WriteOptions{})
	if err != nil {
		t.Fatalf("open write error: %v", err)
	}
	if _, err := w.Write([]byte("partial")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := w.(Aborter).Abort(); err != nil {
		t.Fatalf("abort error: %v", err)
	}

	if _, ok := api.objects["cafe.mp3"]; ok {
		t.Fatalf("aborted write must not upload")
	}
}

func TestS3PublicURL(t *testing.T) {
	backend := newTestS3(newFakeObjectAPI(), config.S3Config{
		Bucket:      "audio",
		Region:      "eu-central-1",
		URLTemplate: "https://{bucket}.s3.{region}.amazonaws.com/{name}",
	})
	if got := backend.PublicURL("cafe.mp3"); got != "https://audio.s3.eu-central-1.amazonaws.com/cafe.mp3" {
		t.Fatalf("template url mismatch: %s", got)
	}

	cdn := newTestS3(newFakeObjectAPI(), config.S3Config{
		Bucket:  "audio",
		CDNBase: "https://cdn.example.com/",
	})
	if got := cdn.PublicURL("cafe.mp3"); got != "https://cdn.example.com/cafe.mp3" {
		t.Fatalf("cdn url mismatch: %s", got)
	}
}
