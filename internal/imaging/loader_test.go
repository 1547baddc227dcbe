package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// solidImage returns an in-memory image filled with c.
func solidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// writePNG encodes img as a PNG named name inside dir and returns its path.
func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", name, err)
	}
	return path
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	path := writePNG(t, t.TempDir(), "frame.png", solidImage(100, 60, color.RGBA{255, 0, 0, 255}))

	img1, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := img1.Bounds(); b.Dx() != 100 || b.Dy() != 60 {
		t.Errorf("dimensions: got %dx%d, want 100x60", b.Dx(), b.Dy())
	}

	img2, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestImageCache_Load_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.png")},
		{"invalid data", garbage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewImageCache()
			if _, err := cache.Load(tt.path); err == nil {
				t.Error("Load should fail")
			}
			if cache.Len() != 0 {
				t.Error("failed load must not be cached")
			}
		})
	}
}

func TestImageCache_ClearAndEvict(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", solidImage(10, 10, color.White))
	b := writePNG(t, dir, "b.png", solidImage(10, 10, color.Black))

	cache := NewImageCache()
	for _, p := range []string{a, b} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load(%s): %v", p, err)
		}
	}

	cache.Evict(a)
	cache.Evict("/not/cached.png")
	if cache.Len() != 1 {
		t.Errorf("after Evict: got %d entries, want 1", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("after Clear: got %d entries, want 0", cache.Len())
	}
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	path := writePNG(t, t.TempDir(), "frame.png", solidImage(50, 50, color.Gray{128}))

	var wg sync.WaitGroup
	errs := make(chan error, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestListFrames(t *testing.T) {
	dir := t.TempDir()
	img := solidImage(4, 4, color.White)
	writePNG(t, dir, "frame-0002.png", img)
	writePNG(t, dir, "frame-0001.png", img)
	writePNG(t, dir, "frame-0003.PNG", img)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o700); err != nil {
		t.Fatal(err)
	}

	frames, err := ListFrames(dir)
	if err != nil {
		t.Fatalf("ListFrames failed: %v", err)
	}

	want := []string{"frame-0001.png", "frame-0002.png", "frame-0003.PNG"}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d: %v", len(frames), len(want), frames)
	}
	for i, name := range want {
		if filepath.Base(frames[i]) != name {
			t.Errorf("frame %d: got %s, want %s", i, filepath.Base(frames[i]), name)
		}
	}
}

func TestListFrames_MissingDir(t *testing.T) {
	if _, err := ListFrames(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ListFrames should fail for a missing directory")
	}
}
