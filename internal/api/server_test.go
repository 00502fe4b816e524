package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/screenshotos/screenshotos/internal/activeapp"
	"github.com/screenshotos/screenshotos/internal/clipboard"
	"github.com/screenshotos/screenshotos/internal/config"
	"github.com/screenshotos/screenshotos/internal/display"
	"github.com/screenshotos/screenshotos/internal/index"
	"github.com/screenshotos/screenshotos/internal/notify"
	"github.com/screenshotos/screenshotos/internal/orchestrator"
	"github.com/screenshotos/screenshotos/internal/overlay"
	"github.com/screenshotos/screenshotos/internal/sidecar"
	"github.com/screenshotos/screenshotos/internal/storage"
)

type stubBackend struct{}

func (stubBackend) NumDisplays() int                     { return 1 }
func (stubBackend) DisplayBounds(int) image.Rectangle    { return image.Rect(0, 0, 64, 48) }
func (stubBackend) CaptureDisplay(int) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}
func (stubBackend) CaptureFullVirtualScreen() (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

type stubSelector struct{}

func (stubSelector) Select(context.Context, []display.Display) (*overlay.Result, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *sidecar.Store, string) {
	t.Helper()
	root := t.TempDir()

	cfg, err := config.NewManager(filepath.Join(root, "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	c := cfg.Get()
	c.SaveDirectory = filepath.Join(root, "shots")
	c.ArchiveDirectory = filepath.Join(root, "archive")
	c.TrashDirectory = filepath.Join(root, "trash")
	c.CopyToClipboard = false
	if err := cfg.Update(c); err != nil {
		t.Fatal(err)
	}

	store := sidecar.NewStore()
	idx := index.NewIndexer(store)
	idx.ComputePerceptualHashes = false
	lib := storage.NewLibrary(c.SaveDirectory, c.ArchiveDirectory, c.TrashDirectory, store)

	displays := display.NewManager(display.NewStaticBackend(display.Display{
		ID:          0,
		Bounds:      display.Rect{Width: 64, Height: 48},
		WorkArea:    display.Rect{Width: 64, Height: 48},
		ScaleFactor: 1.0,
		Primary:     true,
	}))

	orch := orchestrator.New(
		displays, stubSelector{}, stubBackend{}, store, idx, cfg,
		activeapp.StaticProvider{Info: activeapp.AppInfo{Name: "Terminal"}},
		notify.Noop{}, clipboard.Noop{},
	)

	return NewServer(orch, displays, store, idx, lib, cfg), store, c.SaveDirectory
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: non-envelope body %q", method, path, rr.Body.String())
	}
	return rr, env
}

func TestHealthAndDisplays(t *testing.T) {
	s, _, _ := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		rr, env := do(t, s, "GET", "/api/health", nil)
		if rr.Code != http.StatusOK || !env.Success {
			t.Errorf("health = %d, %+v", rr.Code, env)
		}
	})

	t.Run("displays", func(t *testing.T) {
		rr, env := do(t, s, "GET", "/api/displays", nil)
		if rr.Code != http.StatusOK || !env.Success {
			t.Fatalf("displays = %d, %+v", rr.Code, env)
		}
		list, ok := env.Data.([]any)
		if !ok || len(list) != 1 {
			t.Errorf("data = %+v, want one display", env.Data)
		}
	})
}

func TestCaptureEndpoints(t *testing.T) {
	t.Run("fullscreen capture persists and reports", func(t *testing.T) {
		s, store, _ := newTestServer(t)

		rr, env := do(t, s, "POST", "/api/capture/fullscreen", nil)
		if rr.Code != http.StatusOK || !env.Success {
			t.Fatalf("capture = %d, %+v", rr.Code, env)
		}
		data := env.Data.(map[string]any)
		path, _ := data["path"].(string)
		if path == "" {
			t.Fatalf("no path in %+v", data)
		}
		rec, err := store.Load(path)
		if err != nil || rec == nil {
			t.Errorf("sidecar for captured image: %v, %v", rec, err)
		}
	})

	t.Run("cancelled area capture succeeds with no data", func(t *testing.T) {
		s, _, _ := newTestServer(t)

		rr, env := do(t, s, "POST", "/api/capture/area", nil)
		if rr.Code != http.StatusOK || !env.Success {
			t.Fatalf("area = %d, %+v", rr.Code, env)
		}
		if env.Data != nil {
			t.Errorf("cancelled capture data = %+v, want none", env.Data)
		}
	})
}

func TestMetadataEndpoints(t *testing.T) {
	s, store, saveDir := newTestServer(t)

	img := filepath.Join(saveDir, "m.png")
	if err := storage.WriteAtomic(img, []byte("pixels")); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(img, sidecar.CaptureMetadata{CaptureMethod: "area"}, nil, "", nil); err != nil {
		t.Fatal(err)
	}

	t.Run("get metadata", func(t *testing.T) {
		rr, env := do(t, s, "GET", "/api/metadata?path="+img, nil)
		if rr.Code != http.StatusOK || !env.Success {
			t.Fatalf("get = %d, %+v", rr.Code, env)
		}
	})

	t.Run("missing metadata is 404", func(t *testing.T) {
		rr, env := do(t, s, "GET", "/api/metadata?path=/nope.png", nil)
		if rr.Code != http.StatusNotFound || env.Success {
			t.Errorf("missing = %d, %+v", rr.Code, env)
		}
	})

	t.Run("patch tags shows up in search", func(t *testing.T) {
		body := map[string]any{"path": img, "tags": []string{"receipts"}}
		rr, env := do(t, s, "PATCH", "/api/metadata", body)
		if rr.Code != http.StatusOK || !env.Success {
			t.Fatalf("patch = %d, %+v", rr.Code, env)
		}

		_, env = do(t, s, "GET", "/api/images?q=receipts", nil)
		list, _ := env.Data.([]any)
		if len(list) != 1 {
			t.Errorf("search found %d images, want 1", len(list))
		}
	})

	t.Run("annotation lifecycle over http", func(t *testing.T) {
		body := map[string]any{
			"path": img,
			"annotation": sidecar.Annotation{
				ID:    "ann-1",
				Type:  sidecar.AnnotationArrow,
				Color: "#ff0000",
			},
		}
		rr, env := do(t, s, "POST", "/api/metadata/annotations", body)
		if rr.Code != http.StatusOK || !env.Success {
			t.Fatalf("add = %d, %+v", rr.Code, env)
		}

		rr, env = do(t, s, "DELETE", "/api/metadata/annotations/ann-1?path="+img, nil)
		if rr.Code != http.StatusOK || !env.Success {
			t.Fatalf("remove = %d, %+v", rr.Code, env)
		}

		rr, env = do(t, s, "DELETE", "/api/metadata/annotations/ann-1?path="+img, nil)
		if rr.Code != http.StatusNotFound || env.Success {
			t.Errorf("double remove = %d, %+v", rr.Code, env)
		}
	})
}

func TestLibraryEndpoints(t *testing.T) {
	s, store, saveDir := newTestServer(t)

	img := filepath.Join(saveDir, "lib.png")
	if err := storage.WriteAtomic(img, []byte("pixels")); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(img, sidecar.CaptureMetadata{}, nil, "", nil); err != nil {
		t.Fatal(err)
	}

	rr, env := do(t, s, "POST", "/api/library/archive", libraryRequest{Path: img})
	if rr.Code != http.StatusOK || !env.Success {
		t.Fatalf("archive = %d, %+v", rr.Code, env)
	}
	archived := env.Data.(map[string]any)["path"].(string)

	rr, env = do(t, s, "POST", "/api/library/restore", libraryRequest{Path: archived})
	if rr.Code != http.StatusOK || !env.Success {
		t.Fatalf("restore = %d, %+v", rr.Code, env)
	}
	if restored := env.Data.(map[string]any)["path"].(string); restored != img {
		t.Errorf("restored to %s, want %s", restored, img)
	}

	rr, env = do(t, s, "POST", "/api/library/archive", libraryRequest{Path: "/missing.png"})
	if rr.Code != http.StatusInternalServerError || env.Success {
		t.Errorf("archive missing = %d, %+v", rr.Code, env)
	}
}

func TestIndexEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr, env := do(t, s, "GET", "/api/index/status", nil)
	if rr.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, %+v", rr.Code, env)
	}
	data := env.Data.(map[string]any)
	if _, ok := data["scanning"]; !ok {
		t.Errorf("status data = %+v", data)
	}

	rr, env = do(t, s, "POST", "/api/index/rescan", nil)
	if rr.Code != http.StatusOK || !env.Success {
		t.Errorf("rescan = %d, %+v", rr.Code, env)
	}
}

func TestBadRequests(t *testing.T) {
	s, _, _ := newTestServer(t)

	cases := []struct {
		method, path string
	}{
		{"GET", "/api/images?limit=banana"},
		{"GET", "/api/images/tags"},
		{"GET", "/api/images/range?start=yesterday"},
		{"GET", "/api/metadata"},
		{"PATCH", "/api/metadata"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s %s", tc.method, tc.path), func(t *testing.T) {
			rr, env := do(t, s, tc.method, tc.path, nil)
			if rr.Code != http.StatusBadRequest || env.Success {
				t.Errorf("got %d, %+v; want 400 failure", rr.Code, env)
			}
		})
	}
}
