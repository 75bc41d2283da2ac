package beacon

// TransformPoint applies a homogeneous transform to a point (w = 1)
func TransformPoint(p Point, m Matrix4) Point {
	return Point{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}
}

// TransformPoints applies a transform to multiple points
func TransformPoints(points []Point, m Matrix4) []Point {
	result := make([]Point, len(points))
	for i, p := range points {
		result[i] = TransformPoint(p, m)
	}
	return result
}

// MultiplyMatrices composes two transforms: result = m1 * m2
// Applying result is equivalent to applying m2 first, then m1
func MultiplyMatrices(m1, m2 Matrix4) Matrix4 {
	var r Matrix4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			sum := 0
			for k := 0; k < 4; k++ {
				sum += m1[i][k] * m2[k][j]
			}
			r[i][j] = sum
		}
	}
	return r
}

// Transpose returns the transpose of m. For a pure orientation this is its inverse.
func Transpose(m Matrix4) Matrix4 {
	var r Matrix4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// Translation creates a translation-only transform
func Translation(t Point) Matrix4 {
	m := Identity()
	m[0][3] = t.X
	m[1][3] = t.Y
	m[2][3] = t.Z
	return m
}

// TranslationOf returns the translation column of m, i.e. where m sends the origin
func TranslationOf(m Matrix4) Point {
	return Point{X: m[0][3], Y: m[1][3], Z: m[2][3]}
}

// RotationOf returns m with its translation cleared
func RotationOf(m Matrix4) Matrix4 {
	m[0][3], m[1][3], m[2][3] = 0, 0, 0
	return m
}

// CreateRotationTranslation combines an orientation and a translation.
// Rotation is applied first, then translation.
func CreateRotationTranslation(rotation Matrix4, t Point) Matrix4 {
	return MultiplyMatrices(Translation(t), RotationOf(rotation))
}

// InvertRigid inverts a rotation+translation transform exactly:
// inverse(T∘R) = R^T ∘ translate(-t).
func InvertRigid(m Matrix4) Matrix4 {
	rt := Transpose(RotationOf(m))
	rt[3] = [4]int{0, 0, 0, 1}
	t := TranslationOf(m)
	back := TransformPoint(Point{X: -t.X, Y: -t.Y, Z: -t.Z}, rt)
	rt[0][3], rt[1][3], rt[2][3] = back.X, back.Y, back.Z
	return rt
}

// Determinant3 returns the determinant of the 3x3 rotation block
func Determinant3(m Matrix4) int {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}
