package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/taigrr/threedviewer/pkg/errkind"
	"github.com/taigrr/threedviewer/pkg/models"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/cube.obj", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "model/obj")
		io.WriteString(w, "v 0 0 0\n")
	})
	mux.HandleFunc("/models/cube.mtl", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "newmtl red\n")
	})
	mux.HandleFunc("/models/tex/wood-grain.png", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "png")
	})
	mux.HandleFunc("/models/broken.obj", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	ctx := context.Background()

	src := NewHTTP(srv.URL + "/models/cube.obj")
	rc, info, err := src.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := readAll(t, rc); got != "v 0 0 0\n" {
		t.Errorf("body = %q", got)
	}
	if info.Name != "cube.obj" || info.ContentType != "model/obj" || info.Size != 8 {
		t.Errorf("info = %+v", info)
	}

	tests := []struct {
		name     string
		want     string
		notFound bool
	}{
		{"cube.mtl", "newmtl red\n", false},
		{"tex/wood-grain.png", "png", false},
		{"missing.png", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := src.Sibling(ctx, tt.name)
			if tt.notFound {
				if !errors.Is(err, ErrNotFound) || !models.IsNotFound(err) {
					t.Fatalf("err = %v, want not found", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := readAll(t, rc); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}

	_, _, err = NewHTTP(srv.URL + "/models/broken.obj").Open(ctx)
	if errkind.KindOf(err) != errkind.Fetch {
		t.Errorf("500 err = %v, want fetch", err)
	}
	_, _, err = NewHTTP(srv.URL + "/models/none.obj").Open(ctx)
	if errkind.KindOf(err) != errkind.Fetch {
		t.Errorf("404 err = %v, want fetch", err)
	}
}

func TestHTTPCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewHTTP(srv.URL + "/a.glb").Open(ctx)
	if errkind.KindOf(err) != errkind.Cancelled {
		t.Errorf("err = %v, want cancelled", err)
	}
}

func TestNameFromURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://cloud.example/remote.php/dav/files/u/Models/a.glb", "a.glb"},
		{"https://cloud.example/apps/threedviewer/file?file=%2FModels%2Fb.stl", "b.stl"},
		{"https://cloud.example/s/token/download/", "download"},
	}
	for _, tt := range tests {
		if got := nameFromURL(tt.in); got != tt.want {
			t.Errorf("nameFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFS(t *testing.T) {
	fsys := fstest.MapFS{
		"models/car/car.gltf":          {Data: []byte("{}")},
		"models/car/car.bin":           {Data: []byte{1, 2, 3}},
		"models/car/textures/body.png": {Data: []byte("png")},
		"secret.txt":                   {Data: []byte("no")},
	}
	ctx := context.Background()
	src := NewFS(fsys, "models/car/car.gltf")

	rc, info, err := src.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rc.Close()
	if info.Size != 2 || info.Name != "car.gltf" {
		t.Errorf("info = %+v", info)
	}

	for _, name := range []string{"car.bin", "textures/body.png"} {
		rc, err := src.Sibling(ctx, name)
		if err != nil {
			t.Errorf("Sibling(%q): %v", name, err)
			continue
		}
		rc.Close()
	}
	for _, name := range []string{"missing.bin", "../../../secret.txt"} {
		if _, err := src.Sibling(ctx, name); !IsNotFound(err) {
			t.Errorf("Sibling(%q) err = %v, want not found", name, err)
		}
	}

	if _, _, err := NewFS(fsys, "models/car").Open(ctx); errkind.KindOf(err) != errkind.Fetch {
		t.Errorf("directory err = %v, want fetch", err)
	}
}

func TestBytesAndResolver(t *testing.T) {
	src := &Bytes{
		Name:     "dir/m.obj",
		Data:     []byte("v 1 2 3\n"),
		Siblings: map[string][]byte{"m.mtl": []byte("newmtl a\n")},
	}
	ctx := context.Background()
	rc, info, err := src.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rc.Close()
	if info.Name != "m.obj" || info.Size != 8 {
		t.Errorf("info = %+v", info)
	}

	res := Resolver(ctx, src)
	data, err := models.ReadSibling(res, "./m.mtl")
	if err != nil || string(data) != "newmtl a\n" {
		t.Errorf("ReadSibling = %q, %v", data, err)
	}
	if _, err := models.ReadSibling(res, "other.mtl"); !models.IsNotFound(err) {
		t.Errorf("missing err = %v", err)
	}
}

func TestReadAll(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 3*chunkSize+10)
	ctx := context.Background()

	var calls int
	var last int64
	got, err := ReadAll(ctx, bytes.NewReader(payload), ReadOptions{
		Total:    int64(len(payload)),
		Progress: func(n int64) { calls++; last = n },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(payload) {
		t.Errorf("len = %d, want %d", len(got), len(payload))
	}
	if calls < 4 || last != int64(len(payload)) {
		t.Errorf("progress calls = %d last = %d", calls, last)
	}

	// A declared size far beyond the body must not be reserved up front.
	small, err := ReadAll(ctx, strings.NewReader("solid t"), ReadOptions{Total: 1 << 46})
	if err != nil || string(small) != "solid t" {
		t.Errorf("oversized declared total: %q, %v", small, err)
	}

	tests := []struct {
		name  string
		total int64
		max   int64
		kind  errkind.Kind
	}{
		{"declared too large", int64(len(payload)), 100, errkind.ResourceLimit},
		{"stream too large", -1, 100, errkind.ResourceLimit},
		{"fits", -1, int64(len(payload)), errkind.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAll(ctx, bytes.NewReader(payload), ReadOptions{Total: tt.total, MaxBytes: tt.max})
			if got := errkind.KindOf(err); got != tt.kind {
				t.Errorf("kind = %v (%v), want %v", got, err, tt.kind)
			}
		})
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := ReadAll(cctx, strings.NewReader("abc"), ReadOptions{Total: -1}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
}
