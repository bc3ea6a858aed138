package embedder

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/agrolog/apollo/internal/model"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

const (
	inputIDsName      = "input_ids"
	attentionMaskName = "attention_mask"
	tokenTypeIDsName  = "token_type_ids"
)

// onnxSession wraps a DynamicAdvancedSession for BERT-style encoders.
// Run is safe for concurrent use, so one session serves all requests.
type onnxSession struct {
	session      *ort.DynamicAdvancedSession
	inputNames   []string
	outputName   string
	embedDim     int64
	wantsTypeIDs bool
}

// newONNXSession loads the encoder and creates an inference session. Only
// the first model output (per-token hidden states) is requested.
func newONNXSession(modelPath, libPath string) (*onnxSession, error) {
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime from %s: %w", libPath, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}

	inputNames, wantsTypeIDs, err := validateInputs(inputs)
	if err != nil {
		return nil, err
	}

	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	outputName := outputs[0].Name
	dims := outputs[0].Dimensions
	if len(dims) != 3 {
		return nil, fmt.Errorf("onnx: expected 3D output tensor, got %v", dims)
	}
	embedDim := dims[2]
	if embedDim <= 0 {
		return nil, fmt.Errorf("onnx: hidden dimension of %q is not fixed: %v", outputName, dims)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		[]string{outputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &onnxSession{
		session:      session,
		inputNames:   inputNames,
		outputName:   outputName,
		embedDim:     embedDim,
		wantsTypeIDs: wantsTypeIDs,
	}, nil
}

// validateInputs checks for input_ids and attention_mask and reports whether
// the model also declares token_type_ids. The returned order is the feed order.
func validateInputs(inputs []ort.InputOutputInfo) ([]string, bool, error) {
	nameSet := make(map[string]bool, len(inputs))
	for _, inp := range inputs {
		nameSet[inp.Name] = true
	}
	for _, name := range []string{inputIDsName, attentionMaskName} {
		if !nameSet[name] {
			return nil, false, fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	names := []string{inputIDsName, attentionMaskName}
	wantsTypeIDs := nameSet[tokenTypeIDsName]
	if wantsTypeIDs {
		names = append(names, tokenTypeIDsName)
	}
	if len(inputs) != len(names) {
		return nil, false, fmt.Errorf("onnx: model declares %d inputs, only %v can be fed", len(inputs), names)
	}
	return names, wantsTypeIDs, nil
}

// infer runs a single inference call and returns the per-token hidden states
// as a flat float32 slice of shape [batchSize * seqLen * embedDim]. Errors
// match model.ErrInference.
func (s *onnxSession) infer(batch tokenized) ([]float32, error) {
	if batch.batchSize == 0 || batch.seqLen == 0 {
		return nil, fmt.Errorf("onnx: %w: empty batch", model.ErrInference)
	}
	shape := ort.NewShape(batch.batchSize, batch.seqLen)

	tIDs, err := ort.NewTensor(shape, batch.inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: %w: input_ids tensor: %w", model.ErrInference, err)
	}
	defer tIDs.Destroy()

	tMask, err := ort.NewTensor(shape, batch.attentionMask)
	if err != nil {
		return nil, fmt.Errorf("onnx: %w: attention_mask tensor: %w", model.ErrInference, err)
	}
	defer tMask.Destroy()

	feeds := []ort.Value{tIDs, tMask}
	if s.wantsTypeIDs {
		tTypes, err := ort.NewTensor(shape, batch.tokenTypeIDs)
		if err != nil {
			return nil, fmt.Errorf("onnx: %w: token_type_ids tensor: %w", model.ErrInference, err)
		}
		defer tTypes.Destroy()
		feeds = append(feeds, tTypes)
	}

	outShape := ort.NewShape(batch.batchSize, batch.seqLen, s.embedDim)
	tOut, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("onnx: %w: output tensor: %w", model.ErrInference, err)
	}
	defer tOut.Destroy()

	if err := s.session.Run(feeds, []ort.Value{tOut}); err != nil {
		return nil, fmt.Errorf("onnx: %w: %w", model.ErrInference, err)
	}

	src := tOut.GetData()
	want := int(batch.batchSize * batch.seqLen * s.embedDim)
	if len(src) != want {
		return nil, fmt.Errorf("onnx: %w: output has %d values, want %d", model.ErrInference, len(src), want)
	}

	// Copy data out before tensor is destroyed.
	result := make([]float32, len(src))
	copy(result, src)
	return result, nil
}

func (s *onnxSession) hiddenSize() int64 {
	return s.embedDim
}

// close releases the ONNX session resources.
func (s *onnxSession) close() error {
	return s.session.Destroy()
}
