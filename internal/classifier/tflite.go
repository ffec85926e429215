package classifier

import (
	"fmt"
	"os"

	"github.com/tphakala/go-tflite"

	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/logger"
)

type tfliteBackend struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
}

func newTFLiteBackend(modelPath string, threads int) (*tfliteBackend, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.New(fmt.Errorf("cannot open model file: %w", err)).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(modelPath, BackendTFLite).
			Build()
	}

	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(modelPath, BackendTFLite).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New(fmt.Errorf("cannot create interpreter")).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(modelPath, BackendTFLite).
			Build()
	}

	b := &tfliteBackend{model: model, options: options, interpreter: interpreter}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		_ = b.Close()
		return nil, errors.New(fmt.Errorf("tensor allocation failed: %v", status)).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(modelPath, BackendTFLite).
			Build()
	}
	if b.interpreter.GetInputTensor(0) == nil || b.interpreter.GetOutputTensor(0) == nil {
		_ = b.Close()
		return nil, errors.New(fmt.Errorf("model has no input or output tensor")).
			Component("classifier").
			Category(errors.CategoryModelShape).
			ModelContext(modelPath, BackendTFLite).
			Build()
	}

	return b, nil
}

func (b *tfliteBackend) Name() string { return BackendTFLite }

func (b *tfliteBackend) InputShape() []int64 {
	input := b.interpreter.GetInputTensor(0)
	dims := make([]int64, input.NumDims())
	for i := range dims {
		dims[i] = int64(input.Dim(i))
	}
	return dims
}

func (b *tfliteBackend) OutputSize() int {
	output := b.interpreter.GetOutputTensor(0)
	return output.Dim(output.NumDims() - 1)
}

func (b *tfliteBackend) Invoke(input []float32) ([]float32, error) {
	inputTensor := b.interpreter.GetInputTensor(0)
	dst := inputTensor.Float32s()
	if len(dst) != len(input) {
		return nil, fmt.Errorf("%w: input tensor holds %d float32 values, got %d", ErrShape, len(dst), len(input))
	}
	copy(dst, input)

	if status := b.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	outputTensor := b.interpreter.GetOutputTensor(0)
	predictions := make([]float32, outputTensor.Dim(outputTensor.NumDims()-1))
	copy(predictions, outputTensor.Float32s())
	return predictions, nil
}

func (b *tfliteBackend) Close() error {
	if b.interpreter != nil {
		b.interpreter.Delete()
		b.interpreter = nil
	}
	if b.options != nil {
		b.options.Delete()
		b.options = nil
	}
	if b.model != nil {
		b.model.Delete()
		b.model = nil
	}
	return nil
}
