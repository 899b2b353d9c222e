package shading

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

type vec3d [3]float64

func (a vec3d) sub(b vec3d) vec3d     { return vec3d{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a vec3d) add(b vec3d) vec3d     { return vec3d{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a vec3d) dot(b vec3d) float64   { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a vec3d) scale(s float64) vec3d { return vec3d{a[0] * s, a[1] * s, a[2] * s} }
func (a vec3d) norm() vec3d           { return a.scale(1 / math.Sqrt(a.dot(a))) }

// referenceCookTorrance evaluates the direct term in float64 straight from the textbook formulas.
func referenceCookTorrance(p, n, lightPos, lightColor, eye, albedo vec3d, r, m float64) vec3d {
	l := lightPos.sub(p)
	d2 := l.dot(l)
	l = l.norm()
	v := eye.sub(p).norm()
	h := l.add(v).norm()
	nl := math.Max(n.dot(l), 0)
	nv := math.Max(n.dot(v), 0)
	nh := math.Max(n.dot(h), 0)
	hv := math.Max(h.dot(v), 0)

	a := r * r
	den := nh*nh*(a*a-1) + 1
	D := a * a / (math.Pi * den * den)
	k := (r + 1) * (r + 1) / 8
	G := nv / (nv*(1-k) + k) * nl / (nl*(1-k)+k)

	var out vec3d
	for c := range 3 {
		f0 := 0.04*(1-m) + albedo[c]*m
		F := f0 + (1-f0)*math.Pow(1-hv, 5)
		spec := F * D * G / (4*nv*nl + 1e-4)
		kD := (1 - F) * (1 - m)
		out[c] = (kD*albedo[c]/math.Pi + spec) * lightColor[c] / d2 * nl
	}
	return out
}

func TestFresnelSchlickLimits(t *testing.T) {
	f0 := mgl32.Vec3{0.04, 0.5, 0.9}
	normal := FresnelSchlick(1, f0)
	assert.InDeltaSlice(t, f0[:], normal[:], 1e-6)
	one := FresnelSchlick(0, f0)
	assert.InDeltaSlice(t, []float32{1, 1, 1}, one[:], 1e-6)
}

func TestGeometrySchlickGGXAtNormalIncidence(t *testing.T) {
	assert.InDelta(t, 1, GeometrySchlickGGX(1, 0.5), 1e-6)
	assert.InDelta(t, 0, GeometrySchlickGGX(0, 0.5), 1e-6)
}

func TestDirectMatchesReference(t *testing.T) {
	cases := []struct {
		name      string
		lightPos  mgl32.Vec3
		color     mgl32.Vec3
		eye       mgl32.Vec3
		albedo    mgl32.Vec3
		roughness float32
		metallic  float32
	}{
		{"dielectric", mgl32.Vec3{1, 2, 0.5}, mgl32.Vec3{1, 0.8, 0.6}, mgl32.Vec3{-1, 3, 2}, mgl32.Vec3{0.8, 0.5, 0.3}, 0.4, 0},
		{"metal", mgl32.Vec3{-0.5, 1.5, -1}, mgl32.Vec3{2, 2, 2}, mgl32.Vec3{0.3, 2, 1}, mgl32.Vec3{0.9, 0.6, 0.2}, 0.25, 1},
		{"mixed rough", mgl32.Vec3{0, 3, 0}, mgl32.Vec3{5, 5, 5}, mgl32.Vec3{2, 1, 0}, mgl32.Vec3{0.2, 0.7, 0.4}, 0.9, 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Surface{Normal: mgl32.Vec3{0, 1, 0}, Albedo: tc.albedo, AO: 1, Roughness: tc.roughness, Metallic: tc.metallic}
			got := Direct(s, light.Light{Position: tc.lightPos, Color: tc.color}, tc.eye)

			want := referenceCookTorrance(
				vec3d{}, vec3d{0, 1, 0},
				vec3d{float64(tc.lightPos[0]), float64(tc.lightPos[1]), float64(tc.lightPos[2])},
				vec3d{float64(tc.color[0]), float64(tc.color[1]), float64(tc.color[2])},
				vec3d{float64(tc.eye[0]), float64(tc.eye[1]), float64(tc.eye[2])},
				vec3d{float64(tc.albedo[0]), float64(tc.albedo[1]), float64(tc.albedo[2])},
				float64(tc.roughness), float64(tc.metallic),
			)
			for c := range 3 {
				assert.InDelta(t, want[c], got[c], 1e-3)
			}
		})
	}
}

func TestDirectNormalIncidenceClosedForm(t *testing.T) {
	// white dielectric, roughness 0.5, light and eye straight above:
	// D = 1/(pi*0.0625), G = 1, F = 0.04, so the reflectance is 0.96/pi + 0.04*D/4
	reflectance := 0.96/math.Pi + 0.04/(math.Pi*0.0625)/(4+1e-4)
	for _, d := range []float32{1, 2, 3.5} {
		s := Surface{Normal: mgl32.Vec3{0, 1, 0}, Albedo: mgl32.Vec3{1, 1, 1}, AO: 1, Roughness: 0.5}
		got := Direct(s, light.Light{Position: mgl32.Vec3{0, d, 0}, Color: mgl32.Vec3{1, 1, 1}}, mgl32.Vec3{0, 4, 0})
		want := reflectance / float64(d*d)
		assert.InDelta(t, want, got[0], 1e-4)
		assert.InDelta(t, got[0], got[2], 1e-6)
	}
}

func TestDirectBackfacingLightIsBlack(t *testing.T) {
	s := Surface{Normal: mgl32.Vec3{0, 1, 0}, Albedo: mgl32.Vec3{1, 1, 1}, Roughness: 0.5}
	got := Direct(s, light.Light{Position: mgl32.Vec3{0, -2, 0}, Color: mgl32.Vec3{1, 1, 1}}, mgl32.Vec3{0, 3, 0})
	assert.Equal(t, mgl32.Vec3{}, got)

	// grazing view must stay finite
	got = Direct(s, light.Light{Position: mgl32.Vec3{0, 2, 0}, Color: mgl32.Vec3{1, 1, 1}}, mgl32.Vec3{3, 0, 0})
	assert.False(t, math.IsNaN(float64(got[0])) || math.IsInf(float64(got[0]), 0))
}

func TestShadeAmbientOnly(t *testing.T) {
	s := Surface{Normal: mgl32.Vec3{0, 1, 0}, Albedo: mgl32.Vec3{0.5, 0.5, 0.5}, AO: 1, Roughness: 0.5}
	c := Shade(s, nil, mgl32.Vec3{0, 1, 0}, Ambient{Intensity: 0.1, Power: 2, SSAO: 0.5, Voxel: mgl32.Vec3{1, 1, 1}})

	want := 0.1 * math.Pow(0.5, 2.2) * 0.25
	assert.InDelta(t, want, c[0], 1e-6)
}

func TestShadeSumsLightsLinearly(t *testing.T) {
	s := Surface{Normal: mgl32.Vec3{0, 1, 0}, Albedo: mgl32.Vec3{0.7, 0.7, 0.7}, AO: 1, Roughness: 0.6}
	a := light.Light{Position: mgl32.Vec3{1, 2, 0}, Color: mgl32.Vec3{1, 1, 1}}
	b := light.Light{Position: mgl32.Vec3{-2, 1, 1}, Color: mgl32.Vec3{0.5, 0.2, 1}}
	eye := mgl32.Vec3{0, 3, 3}
	none := Ambient{Voxel: mgl32.Vec3{1, 1, 1}, Power: 1}

	both := Shade(s, []light.Light{a, b}, eye, none)
	sum := Shade(s, []light.Light{a}, eye, none).Add(Shade(s, []light.Light{b}, eye, none))
	assert.InDeltaSlice(t, sum[:], both[:], 1e-6)
}

func TestLightingRows(t *testing.T) {
	gb := frame.NewGBuffer(2, 1)
	gb.Position.Set(0, 0, mgl32.Vec4{0, 0, 0, 1})
	gb.Normal.Set(0, 0, mgl32.Vec4{0, 1, 0, 0})
	gb.Albedo.Set(0, 0, mgl32.Vec4{1, 1, 1, 1})
	gb.ARM.Set(0, 0, mgl32.Vec4{1, 0.5, 0, 0})
	gb.Depth.Set(0, 0, 0.5)
	ao := frame.NewImage1(2, 1)
	ao.Fill(0.8)
	dst := frame.NewImage4(2, 1)

	p := Params{
		Lights:       []light.Light{{Position: mgl32.Vec3{0, 2, 0}, Color: mgl32.Vec3{1, 1, 1}}},
		ViewPosition: mgl32.Vec3{0, 5, 0},
		AmbientPower: 1,
		Debug:        [4]float32{0, 1, 0, 0},
	}
	LightingRows(gb, ao, p, dst, 0, 1)

	assert.Equal(t, mgl32.Vec4{}, dst.At(1, 0), "background stays empty")
	lit := dst.At(0, 0)
	assert.InDelta(t, 0.35651/4, lit[0], 1e-3)
	assert.Equal(t, float32(1), lit[3])

	p.Debug[DebugShowAO] = 1
	LightingRows(gb, ao, p, dst, 0, 1)
	grey := dst.At(0, 0)
	assert.InDeltaSlice(t, []float32{0.8, 0.8, 0.8, 1}, grey[:], 1e-6)
}

func TestVoxelTerm(t *testing.T) {
	p := Params{VoxelIntensity: 2, Debug: [4]float32{0, 1, 0, 0}}
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, p.VoxelTerm(mgl32.Vec3{}))

	g := voxel.NewGrid(4, mgl32.Vec3{}, mgl32.Vec3{4, 4, 4})
	acc := voxel.NewAccumulator(g)
	require.True(t, acc.Scatter(mgl32.Vec3{0.5, 0.5, 0.5}, [3]uint8{51, 102, 255}))
	p.Voxel = voxel.Reduce(acc)

	got := p.VoxelTerm(mgl32.Vec3{0.5, 0.5, 0.5})
	assert.InDeltaSlice(t, []float32{0.4, 0.8, 2}, got[:], 1e-5)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, p.VoxelTerm(mgl32.Vec3{-1.5, -1.5, -1.5}), "empty cell")
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, p.VoxelTerm(mgl32.Vec3{10, 0, 0}), "outside the box")
}

func TestDiffuse(t *testing.T) {
	s := Surface{Normal: mgl32.Vec3{0, 1, 0}, Albedo: mgl32.Vec3{1, 0.5, 0}}
	c := Diffuse(s, []light.Light{{Position: mgl32.Vec3{0, 2, 0}, Color: mgl32.Vec3{4, 4, 4}}})
	assert.InDelta(t, 1, c[0], 1e-6)
	assert.InDelta(t, math.Pow(0.5, 2.2), c[1], 1e-6)
	assert.Equal(t, float32(0), c[2])
}

func TestGPUParams(t *testing.T) {
	g := NewGPUParams(Params{AmbientIntensity: 0.5, Debug: [4]float32{1, 2, 3, 4}})
	assert.Len(t, g.Marshal(), 48)
	assert.Equal(t, uint32(0), g.VoxelEnabled)
	assert.Contains(t, GPUParamsSource, "struct LightingParams")
}
