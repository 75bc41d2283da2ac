package beacon

// OrientationCount is the number of proper axis-aligned rotations of a cube
const OrientationCount = 24

// facingMatrices send +x to each signed axis: +x, -x, +y, -y, -z, +z.
var facingMatrices = [6]Matrix4{
	{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
	{{-1, 0, 0, 0}, {0, -1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
	{{0, -1, 0, 0}, {1, 0, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
	{{0, 1, 0, 0}, {-1, 0, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
	{{0, 0, 1, 0}, {0, 1, 0, 0}, {-1, 0, 0, 0}, {0, 0, 0, 1}},
	{{0, 0, -1, 0}, {0, 1, 0, 0}, {1, 0, 0, 0}, {0, 0, 0, 1}},
}

// rollMatrices rotate about the x axis by 0, 180, 90 and 270 degrees.
var rollMatrices = [4]Matrix4{
	{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
	{{1, 0, 0, 0}, {0, -1, 0, 0}, {0, 0, -1, 0}, {0, 0, 0, 1}},
	{{1, 0, 0, 0}, {0, 0, -1, 0}, {0, 1, 0, 0}, {0, 0, 0, 1}},
	{{1, 0, 0, 0}, {0, 0, 1, 0}, {0, -1, 0, 0}, {0, 0, 0, 1}},
}

var orientations = buildOrientations()

// buildOrientations takes every facing*roll product. Index = roll*6 + facing.
func buildOrientations() [OrientationCount]Matrix4 {
	var out [OrientationCount]Matrix4
	for f := range facingMatrices {
		for r := range rollMatrices {
			out[f+r*len(facingMatrices)] = MultiplyMatrices(facingMatrices[f], rollMatrices[r])
		}
	}
	return out
}

// Orientations returns a copy of the 24 orientation matrices in their fixed order.
// No mirrored orientation is ever produced.
func Orientations() []Matrix4 {
	out := make([]Matrix4, OrientationCount)
	copy(out, orientations[:])
	return out
}

// Orientation returns the orientation at index i
func Orientation(i int) Matrix4 {
	return orientations[i]
}

// IsProperRotation reports whether m is a signed permutation with determinant +1
// and no translation or projective part.
func IsProperRotation(m Matrix4) bool {
	if m[3] != [4]int{0, 0, 0, 1} || m[0][3] != 0 || m[1][3] != 0 || m[2][3] != 0 {
		return false
	}
	for i := 0; i < 3; i++ {
		rowNonZero, colNonZero := 0, 0
		for j := 0; j < 3; j++ {
			if v := m[i][j]; v != 0 {
				if v != 1 && v != -1 {
					return false
				}
				rowNonZero++
			}
			if m[j][i] != 0 {
				colNonZero++
			}
		}
		if rowNonZero != 1 || colNonZero != 1 {
			return false
		}
	}
	return Determinant3(m) == 1
}
