package geometry

import "testing"

func TestNormalize_PadsAndClips(t *testing.T) {
	// A box in the interior of a large image gets full padding on all sides.
	got, ok := Normalize(Box{X: 400, Y: 650, Width: 350, Height: 60}, 1600, 1200)
	if !ok {
		t.Fatal("Expected box to be valid")
	}
	want := Box{X: 385, Y: 635, Width: 380, Height: 90}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestNormalize_ClipsAtOrigin(t *testing.T) {
	got, ok := Normalize(Box{X: 5, Y: 5, Width: 100, Height: 40}, 800, 600)
	if !ok {
		t.Fatal("Expected box to be valid")
	}
	if got.X != 0 || got.Y != 0 {
		t.Errorf("Expected padded box clipped to origin, got %+v", got)
	}
	// Padding lost on the near side is not added back.
	if got.Width != 5+100+Padding || got.Height != 5+40+Padding {
		t.Errorf("Unexpected padded dimensions: %+v", got)
	}
}

func TestNormalize_ClipsAtImageEdge(t *testing.T) {
	got, ok := Normalize(Box{X: 700, Y: 500, Width: 200, Height: 200}, 800, 600)
	if !ok {
		t.Fatal("Expected box to be valid")
	}
	if got.X+got.Width > 800 || got.Y+got.Height > 600 {
		t.Errorf("Box escapes image bounds: %+v", got)
	}
}

func TestNormalize_EnforcesMinimumSize(t *testing.T) {
	got, ok := Normalize(Box{X: 100, Y: 100, Width: 1, Height: 1}, 800, 600)
	if !ok {
		t.Fatal("Expected box to be valid")
	}
	if got.Width < MinWidth || got.Height < MinHeight {
		t.Errorf("Expected at least %dx%d, got %+v", MinWidth, MinHeight, got)
	}
}

func TestNormalize_RejectsBoxOutsideImage(t *testing.T) {
	if _, ok := Normalize(Box{X: 900, Y: 700, Width: 50, Height: 50}, 800, 600); ok {
		t.Error("Expected box outside the image to be rejected")
	}
	if _, ok := Normalize(Box{X: 100, Y: 100, Width: 0, Height: 50}, 800, 600); ok {
		t.Error("Expected zero-width box to be rejected")
	}
	if _, ok := Normalize(Box{X: -100, Y: -100, Width: 50, Height: 50}, 800, 600); ok {
		t.Error("Expected fully negative box to be rejected")
	}
}

func TestBox_Helpers(t *testing.T) {
	b := Box{X: 10, Y: 20, Width: 30, Height: 40}
	if b.IsEmpty() {
		t.Error("Expected box to be non-empty")
	}
	if (Box{Width: 0, Height: 10}).IsEmpty() == false {
		t.Error("Expected zero-width box to be empty")
	}
	r := b.Rect()
	if r.Min.X != 10 || r.Min.Y != 20 || r.Max.X != 40 || r.Max.Y != 60 {
		t.Errorf("Unexpected rectangle: %v", r)
	}
	if b.Array() != [4]int{10, 20, 30, 40} {
		t.Errorf("Unexpected wire order: %v", b.Array())
	}
}
