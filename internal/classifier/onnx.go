package classifier

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/errors"
)

type onnxBackend struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputDims    []int64
	outputSize   int
}

func newONNXBackend(modelPath string, settings *conf.ONNXSettings, threads int) (*onnxBackend, error) {
	modelErr := func(err error, category errors.ErrorCategory) error {
		return errors.New(err).
			Component("classifier").
			Category(category).
			ModelContext(modelPath, BackendONNX).
			Build()
	}

	if _, err := os.Stat(modelPath); err != nil {
		return nil, modelErr(fmt.Errorf("cannot open model file: %w", err), errors.CategoryModelLoad)
	}

	if !ort.IsInitialized() {
		if settings.LibraryPath != "" {
			ort.SetSharedLibraryPath(settings.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, modelErr(fmt.Errorf("failed to initialize ONNX environment: %w", err), errors.CategoryModelInit)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, modelErr(fmt.Errorf("failed to read model inputs and outputs: %w", err), errors.CategoryModelLoad)
	}
	inputInfo, ok := findTensorInfo(inputs, settings.InputName)
	if !ok {
		return nil, modelErr(fmt.Errorf("%w: model has no input named %q", ErrShape, settings.InputName), errors.CategoryModelShape)
	}
	outputInfo, ok := findTensorInfo(outputs, settings.OutputName)
	if !ok {
		return nil, modelErr(fmt.Errorf("%w: model has no output named %q", ErrShape, settings.OutputName), errors.CategoryModelShape)
	}
	if len(outputInfo.Dimensions) == 0 {
		return nil, modelErr(fmt.Errorf("%w: model output %q is a scalar", ErrShape, settings.OutputName), errors.CategoryModelShape)
	}
	outputSize := int(outputInfo.Dimensions[len(outputInfo.Dimensions)-1])

	// Checked here as well as in New so that tensors are only allocated for a valid model
	if err := checkInputShape(inputInfo.Dimensions); err != nil {
		return nil, newShapeError(err, BackendONNX)
	}
	if outputSize <= 0 {
		return nil, modelErr(fmt.Errorf("%w: model output %q has dynamic class dimension", ErrShape, settings.OutputName), errors.CategoryModelShape)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(InputShape...))
	if err != nil {
		return nil, modelErr(fmt.Errorf("failed to create input tensor: %w", err), errors.CategoryModelInit)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(outputSize)))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, modelErr(fmt.Errorf("failed to create output tensor: %w", err), errors.CategoryModelInit)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, modelErr(fmt.Errorf("failed to create session options: %w", err), errors.CategoryModelInit)
	}
	defer func() { _ = options.Destroy() }()
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		GetLogger().Warn("cannot set ONNX thread count")
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{settings.InputName}, []string{settings.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, modelErr(fmt.Errorf("failed to create ONNX session: %w", err), errors.CategoryModelInit)
	}

	return &onnxBackend{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputDims:    []int64(inputInfo.Dimensions),
		outputSize:   outputSize,
	}, nil
}

func findTensorInfo(infos []ort.InputOutputInfo, name string) (ort.InputOutputInfo, bool) {
	for _, info := range infos {
		if info.Name == name {
			return info, true
		}
	}
	return ort.InputOutputInfo{}, false
}

func (b *onnxBackend) Name() string { return BackendONNX }

func (b *onnxBackend) InputShape() []int64 { return b.inputDims }

func (b *onnxBackend) OutputSize() int { return b.outputSize }

func (b *onnxBackend) Invoke(input []float32) ([]float32, error) {
	dst := b.inputTensor.GetData()
	if len(dst) != len(input) {
		return nil, fmt.Errorf("%w: input tensor holds %d float32 values, got %d", ErrShape, len(dst), len(input))
	}
	copy(dst, input)

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, b.outputSize)
	copy(out, b.outputTensor.GetData())
	return out, nil
}

func (b *onnxBackend) Close() error {
	var errs []error
	if b.session != nil {
		errs = append(errs, b.session.Destroy())
		b.session = nil
	}
	if b.inputTensor != nil {
		errs = append(errs, b.inputTensor.Destroy())
		b.inputTensor = nil
	}
	if b.outputTensor != nil {
		errs = append(errs, b.outputTensor.Destroy())
		b.outputTensor = nil
	}
	errs = append(errs, ort.DestroyEnvironment())
	return errors.Join(errs...)
}
