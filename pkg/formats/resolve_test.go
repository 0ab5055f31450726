package formats

import (
	"errors"
	"strings"
	"testing"

	"github.com/taigrr/threedviewer/pkg/errkind"
)

func TestResolveModelExtensions(t *testing.T) {
	for _, ext := range Extensions(Model) {
		for _, name := range []string{"model." + ext, "dir/Model." + strings.ToUpper(ext)} {
			for _, ct := range []string{"", "image/png", "application/octet-stream"} {
				f, err := Resolve(name, ct)
				if err != nil {
					t.Fatalf("Resolve(%q, %q) error = %v", name, ct, err)
				}
				if string(f.ID) != ext {
					t.Errorf("Resolve(%q, %q).ID = %q, want %q", name, ct, f.ID, ext)
				}
			}
		}
	}
}

func TestResolveUnsupported(t *testing.T) {
	for _, name := range []string{"scene.fbx", "notes.txt", "archive.zip"} {
		_, err := Resolve(name, "application/octet-stream")
		var e *errkind.Error
		if !errors.As(err, &e) || e.Kind != errkind.UnsupportedFormat {
			t.Fatalf("Resolve(%q) error = %v, want unsupported-format", name, err)
		}
		if e.Extension != ExtOf(name) {
			t.Errorf("Extension = %q, want %q", e.Extension, ExtOf(name))
		}
	}
}

func TestResolveDependencyAsPrimary(t *testing.T) {
	for _, ext := range Extensions(Dependency) {
		_, err := Resolve("file."+ext, "")
		if errkind.KindOf(err) != errkind.DependencyAsPrimary {
			t.Errorf("Resolve(file.%s) kind = %v, want dependency-as-primary", ext, errkind.KindOf(err))
		}
	}
}

func TestResolveContentTypeFallback(t *testing.T) {
	tests := []struct {
		name string
		ct   string
		want ID
		kind errkind.Kind
	}{
		{"download", "model/gltf-binary", GLB, errkind.Unknown},
		{"download", "model/stl; charset=binary", STL, errkind.Unknown},
		{"blob.unknown", "MODEL/GLTF+JSON", GLTF, errkind.Unknown},
		{"download", "image/png", "", errkind.DependencyAsPrimary},
		{"download", "", "", errkind.UnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.ct, func(t *testing.T) {
			f, err := Resolve(tt.name, tt.ct)
			if tt.kind != errkind.Unknown {
				if errkind.KindOf(err) != tt.kind {
					t.Fatalf("kind = %v, want %v", errkind.KindOf(err), tt.kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve error = %v", err)
			}
			if f.ID != tt.want {
				t.Errorf("ID = %q, want %q", f.ID, tt.want)
			}
		})
	}
}

func TestResolveDependency(t *testing.T) {
	f, ok := ResolveDependency("textures/Wood.JPG")
	if !ok || f.ID != JPEG {
		t.Errorf("ResolveDependency = (%v, %v), want jpeg", f.ID, ok)
	}
	if _, ok := ResolveDependency("model.obj"); ok {
		t.Error("model format should not resolve as a dependency")
	}
}

func TestExtOf(t *testing.T) {
	tests := map[string]string{
		"a.GLB":                   "glb",
		"/remote.php/dav/x.obj?v": "obj",
		"noext":                   "",
		"archive.tar.STL":         "stl",
	}
	for in, want := range tests {
		if got := ExtOf(in); got != want {
			t.Errorf("ExtOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKindHelpers(t *testing.T) {
	if !IsModel("PLY") || IsModel("mtl") {
		t.Error("IsModel mismatch")
	}
	if !IsDependency(".bin") || IsDependency("glb") {
		t.Error("IsDependency mismatch")
	}
	if got := MIMETypes(GLB); len(got) != 1 || got[0] != "model/gltf-binary" {
		t.Errorf("MIMETypes(glb) = %v", got)
	}
}
