package pipeline

import (
	"reflect"
	"testing"
)

func TestFrameCount(t *testing.T) {
	cases := []struct {
		duration float64
		want     int
	}{
		{132, 27},
		{30, 6},
		{47, 10},
		{1, 1},
		{5, 1},
		{5.1, 2},
		{0, 0},
		{-3, 0},
	}
	for _, c := range cases {
		if got := FrameCount(c.duration, 5); got != c.want {
			t.Errorf("FrameCount(%v, 5) = %d, want %d", c.duration, got, c.want)
		}
	}
}

func TestGenerate_132_seconds(t *testing.T) {
	g := NewFrameGenerator("", 0)
	frames := g.Generate("pb123", 132)

	if len(frames) != 27 {
		t.Fatalf("expected 27 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.TimestampSeconds != i*5 {
			t.Errorf("frame %d: timestamp %d, want %d", i, f.TimestampSeconds, i*5)
		}
	}
	if last := frames[26].TimestampSeconds; last != 130 {
		t.Errorf("last timestamp %d, want 130", last)
	}
}

func TestGenerate_exact_multiple_excludes_end(t *testing.T) {
	g := NewFrameGenerator("", 0)
	frames := g.Generate("pb123", 30)

	if len(frames) != 6 {
		t.Fatalf("expected 6 frames, got %d", len(frames))
	}
	for _, f := range frames {
		if f.TimestampSeconds >= 30 {
			t.Errorf("frame at %d should be excluded (strict < duration)", f.TimestampSeconds)
		}
	}
}

func TestGenerate_47_seconds(t *testing.T) {
	g := NewFrameGenerator("", 0)
	frames := g.Generate("pb123", 47)

	if len(frames) != 10 {
		t.Fatalf("expected 10 frames, got %d", len(frames))
	}
	if last := frames[9].TimestampSeconds; last != 45 {
		t.Errorf("last timestamp %d, want 45", last)
	}
}

func TestGenerate_short_duration_single_frame(t *testing.T) {
	g := NewFrameGenerator("", 0)
	frames := g.Generate("pb123", 3.2)

	if len(frames) != 1 {
		t.Fatalf("expected exactly one frame, got %d", len(frames))
	}
	if frames[0].TimestampSeconds != 0 {
		t.Errorf("timestamp %d, want 0", frames[0].TimestampSeconds)
	}
}

func TestGenerate_address_and_label(t *testing.T) {
	g := NewFrameGenerator("https://image.example.com", 5)
	frames := g.Generate("pbXYZ", 12)

	want := "https://image.example.com/pbXYZ/thumbnail.png?time=10"
	if frames[2].Address != want {
		t.Errorf("address %q, want %q", frames[2].Address, want)
	}
	if frames[2].Label != "00m10s" {
		t.Errorf("label %q, want 00m10s", frames[2].Label)
	}
}

func TestGenerate_deterministic(t *testing.T) {
	g := NewFrameGenerator("", 0)
	a := g.Generate("pb123", 47)
	b := g.Generate("pb123", 47)

	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs must produce identical descriptor lists")
	}
}

func TestFrameLabel(t *testing.T) {
	cases := []struct {
		ts   int
		want string
	}{
		{0, "00m00s"},
		{5, "00m05s"},
		{65, "01m05s"},
		{330, "05m30s"},
		{3599, "59m59s"},
	}
	for _, c := range cases {
		if got := FrameLabel(c.ts); got != c.want {
			t.Errorf("FrameLabel(%d) = %q, want %q", c.ts, got, c.want)
		}
	}
}
