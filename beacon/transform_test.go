package beacon

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTransformPoint(t *testing.T) {
	tests := []struct {
		name   string
		point  Point
		matrix Matrix4
		want   Point
	}{
		{
			name:   "identity transform",
			point:  Point{X: 10, Y: 20, Z: 30},
			matrix: Identity(),
			want:   Point{X: 10, Y: 20, Z: 30},
		},
		{
			name:   "translation only",
			point:  Point{X: 5, Y: 5, Z: 5},
			matrix: Translation(Point{X: 10, Y: -15, Z: 1}),
			want:   Point{X: 15, Y: -10, Z: 6},
		},
		{
			name:   "quarter turn about z",
			point:  Point{X: 1, Y: 2, Z: 3},
			matrix: facingMatrices[2],
			want:   Point{X: -2, Y: 1, Z: 3},
		},
		{
			name:   "rotation then translation",
			point:  Point{X: 1, Y: 0, Z: 0},
			matrix: CreateRotationTranslation(facingMatrices[2], Point{X: 100, Y: 0, Z: 0}),
			want:   Point{X: 100, Y: 1, Z: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransformPoint(tt.point, tt.matrix)
			if got != tt.want {
				t.Errorf("TransformPoint() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMultiplyMatrices_Order(t *testing.T) {
	rot := Orientation(7)
	shift := Translation(Point{X: 3, Y: -4, Z: 5})
	p := Point{X: 11, Y: -7, Z: 2}

	// m1*m2 applies m2 first
	got := TransformPoint(p, MultiplyMatrices(shift, rot))
	want := TransformPoint(TransformPoint(p, rot), shift)
	if got != want {
		t.Errorf("composition order: got %+v, want %+v", got, want)
	}
}

func TestInvertRigid(t *testing.T) {
	for i := 0; i < OrientationCount; i++ {
		m := CreateRotationTranslation(Orientation(i), Point{X: 68, Y: -1246, Z: -43})
		inv := InvertRigid(m)

		if diff := cmp.Diff(Identity(), MultiplyMatrices(m, inv)); diff != "" {
			t.Errorf("orientation %d: m*inv != I (-want +got):\n%s", i, diff)
		}
		if diff := cmp.Diff(Identity(), MultiplyMatrices(inv, m)); diff != "" {
			t.Errorf("orientation %d: inv*m != I (-want +got):\n%s", i, diff)
		}
	}
}

func TestTranslationOfAndRotationOf(t *testing.T) {
	tr := Point{X: 1, Y: 2, Z: 3}
	m := CreateRotationTranslation(Orientation(13), tr)

	if got := TranslationOf(m); got != tr {
		t.Errorf("TranslationOf() = %+v, want %+v", got, tr)
	}
	if diff := cmp.Diff(Orientation(13), RotationOf(m)); diff != "" {
		t.Errorf("RotationOf() mismatch (-want +got):\n%s", diff)
	}
	if got := TransformPoint(Point{}, m); got != tr {
		t.Errorf("origin maps to %+v, want %+v", got, tr)
	}
}

func TestDeterminant3(t *testing.T) {
	if got := Determinant3(Identity()); got != 1 {
		t.Errorf("det(I) = %d, want 1", got)
	}
	mirror := Identity()
	mirror[0][0] = -1
	if got := Determinant3(mirror); got != -1 {
		t.Errorf("det(mirror) = %d, want -1", got)
	}
}

func TestPointHelpers(t *testing.T) {
	p := Point{X: 1, Y: -2, Z: 3}
	q := Point{X: -4, Y: 5, Z: 6}

	if got := p.Add(q); got != (Point{X: -3, Y: 3, Z: 9}) {
		t.Errorf("Add() = %+v", got)
	}
	if got := p.Sub(q); got != (Point{X: 5, Y: -7, Z: -3}) {
		t.Errorf("Sub() = %+v", got)
	}
	if got := p.Manhattan(q); got != 15 {
		t.Errorf("Manhattan() = %d, want 15", got)
	}

	tests := []struct {
		p    Point
		want bool
	}{
		{Point{X: 1000, Y: -1000, Z: 0}, true},
		{Point{X: 1001, Y: 0, Z: 0}, false},
		{Point{X: 0, Y: 0, Z: -1001}, false},
	}
	for _, tt := range tests {
		if got := tt.p.InRange(1000); got != tt.want {
			t.Errorf("%+v.InRange(1000) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
