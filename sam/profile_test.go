package sam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesValidate(t *testing.T) {
	for _, k := range Kinds() {
		p := k.Profile()
		require.NoError(t, p.Validate(), k.String())
		assert.Equal(t, k, p.Kind)
		assert.NotEmpty(t, p.Name)

		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("MobileSAM")
	require.NoError(t, err)
	assert.Equal(t, KindMobileSAM, k)

	k, err = ParseKind("sam_hq")
	require.NoError(t, err)
	assert.Equal(t, KindSAMHQ, k)

	_, err = ParseKind("sam3")
	assert.ErrorIs(t, err, ErrConfig)
}

func TestUnknownKindPanics(t *testing.T) {
	assert.Panics(t, func() { Kind(42).Profile() })
}

func TestPromptTensorsBoxAsPoints(t *testing.T) {
	p := KindSAM.Profile()
	prompt := Prompt{}.WithBox(100, 50, 300, 250)

	tensors, err := p.PromptTensors(prompt, 0.5, 1000, 800)
	require.NoError(t, err)

	coords := tensors["point_coords"]
	assert.Equal(t, []int64{1, 2, 2}, coords.Shape)
	assert.Equal(t, []float32{50, 25, 150, 125}, coords.Data)
	assert.Equal(t, []float32{2, 3}, tensors["point_labels"].Data)
	assert.Equal(t, []int64{1, 1, 256, 256}, tensors["mask_input"].Shape)
	assert.Equal(t, []float32{0}, tensors["has_mask_input"].Data)
	assert.Equal(t, []float32{800, 1000}, tensors["orig_im_size"].Data)
	assert.NotContains(t, tensors, "boxes")
}

func TestPromptTensorsPadPoint(t *testing.T) {
	p := KindMobileSAM.Profile()
	prompt := Prompt{}.WithPositivePoint(10, 20).WithNegativePoint(30, 40)

	tensors, err := p.PromptTensors(prompt, 1, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 2}, tensors["point_coords"].Shape)
	assert.Equal(t, []float32{10, 20, 30, 40, 0, 0}, tensors["point_coords"].Data)
	assert.Equal(t, []float32{1, 0, -1}, tensors["point_labels"].Data)
}

func TestPromptTensorsSAMHQLayout(t *testing.T) {
	p := KindSAMHQ.Profile()
	assert.Equal(t, "point_coords", p.Decoder.input(p.Decoder.Points))
	assert.Equal(t, "point_labels", p.Decoder.input(p.Decoder.Labels))
	assert.Contains(t, p.Encoder.Outputs, "interm_embeddings")

	tensors, err := p.PromptTensors(Prompt{}.WithPositivePoint(1, 1), 1, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, tensors["point_labels"].Shape)
}

func TestPromptTensorsBoxTensor(t *testing.T) {
	p := KindEdgeSAM.Profile()
	tensors, err := p.PromptTensors(Prompt{}.WithBox(10, 20, 30, 40), 2, 100, 100)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 1, 4}, tensors["boxes"].Shape)
	assert.Equal(t, []float32{20, 40, 60, 80}, tensors["boxes"].Data)
	assert.Equal(t, []int64{1, 0, 2}, tensors["point_coords"].Shape)
	assert.Equal(t, []int64{1, 0}, tensors["point_labels"].Shape)
}

func TestPromptSupport(t *testing.T) {
	boxOnly := KindEdgeSAM.Profile()
	_, err := boxOnly.PromptTensors(Prompt{}.WithPositivePoint(1, 1), 1, 10, 10)
	assert.ErrorIs(t, err, ErrUnsupportedPrompt)

	pointsOnly := KindSAM.Profile()
	pointsOnly.Support = PromptSupport{Points: true}
	_, err = pointsOnly.PromptTensors(Prompt{}.WithBox(1, 1, 5, 5), 1, 10, 10)
	assert.ErrorIs(t, err, ErrUnsupportedPrompt)

	for _, k := range Kinds() {
		_, err := k.Profile().PromptTensors(Prompt{}, 1, 10, 10)
		assert.ErrorIs(t, err, ErrUnsupportedPrompt, k.String())
	}
}

func TestProfileValidateRejectsBadDims(t *testing.T) {
	p := KindSAM.Profile()
	p.Encoder.Height = Dim{Min: 1024, Opt: 800, Max: 1024}
	assert.ErrorIs(t, p.Validate(), ErrConfig)

	p = KindSAM.Profile()
	p.Decoder.Points = AxisRef{Input: 9, Axis: 1}
	assert.ErrorIs(t, p.Validate(), ErrConfig)
}
