package detectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/daulet/tokenizers"
	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/hannes/idshield/ocr"
	"github.com/hannes/idshield/pii"
)

const (
	nerMaxSeqLen     = 512
	nerMinTokenScore = 0.5
)

// NERDetector implements Generator using an ONNX token-classification model.
// It runs the model over each block's text, decodes B-/I- label sequences
// into entity spans and anchors each span to the block's bounding box. The
// session and tensors are created lazily on first use and shared read-only
// afterwards; inference itself is serialized because the tensors are reused.
type NERDetector struct {
	mu           sync.Mutex
	tokenizer    *tokenizers.Tokenizer
	session      *onnxruntime.AdvancedSession
	inputTensor  *onnxruntime.Tensor[int64]
	maskTensor   *onnxruntime.Tensor[int64]
	outputTensor *onnxruntime.Tensor[float32]
	id2label     map[string]string
	numLabels    int
	modelPath    string
}

// NewNERDetector loads the tokenizer and label mappings and prepares the
// detector. The ONNX Runtime environment is initialized once per process.
func NewNERDetector(modelPath, tokenizerPath, labelMapPath string) (*NERDetector, error) {
	if libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); libPath != "" {
		onnxruntime.SetSharedLibraryPath(libPath)
	}
	if !onnxruntime.IsInitialized() {
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
		}
	}

	tk, err := tokenizers.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	labelData, err := os.ReadFile(labelMapPath)
	if err != nil {
		if closeErr := tk.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close tokenizer during cleanup: %v\n", closeErr)
		}
		return nil, fmt.Errorf("failed to load label mappings: %w", err)
	}

	var labelConfig struct {
		ID2Label map[string]string `json:"id2label"`
		Label2ID map[string]int    `json:"label2id"`
	}
	if err := json.Unmarshal(labelData, &labelConfig); err != nil {
		if closeErr := tk.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close tokenizer during cleanup: %v\n", closeErr)
		}
		return nil, fmt.Errorf("failed to parse label mappings: %w", err)
	}

	numLabels := 0
	for idStr := range labelConfig.ID2Label {
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err == nil && id >= numLabels {
			numLabels = id + 1
		}
	}
	if numLabels == 0 {
		numLabels = len(labelConfig.Label2ID)
	}
	if numLabels == 0 {
		if closeErr := tk.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close tokenizer during cleanup: %v\n", closeErr)
		}
		return nil, fmt.Errorf("label mappings contain no labels")
	}

	return &NERDetector{
		tokenizer: tk,
		id2label:  labelConfig.ID2Label,
		numLabels: numLabels,
		modelPath: modelPath,
	}, nil
}

// Name returns the name of this generator
func (d *NERDetector) Name() string {
	return GeneratorNameNER
}

// Propose runs NER over each block's text. Excluded boilerplate blocks are
// dropped up front so model spans extracted from them can never surface as
// candidates.
func (d *NERDetector) Propose(ctx context.Context, blocks []ocr.Block) ([]pii.Entity, error) {
	eligible := make([]ocr.Block, 0, len(blocks))
	for _, block := range blocks {
		text := strings.TrimSpace(block.Text)
		if text == "" || pii.IsExcluded(text) {
			continue
		}
		block.Text = text
		eligible = append(eligible, block)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		if err := d.initializeSession(); err != nil {
			return nil, fmt.Errorf("failed to initialize session: %w", err)
		}
	}

	var entities []pii.Entity
	for _, block := range eligible {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		spans, err := d.detectSpans(block.Text)
		if err != nil {
			return nil, err
		}
		for _, span := range spans {
			entities = append(entities, pii.Entity{
				Text:       span.text,
				Type:       span.label,
				Confidence: span.confidence,
				Box:        block.Box,
			})
		}
	}
	return entities, nil
}

type nerSpan struct {
	text       string
	label      string
	confidence float64
}

// detectSpans tokenizes one text, runs inference and decodes the B-/I-
// labeled token sequence into spans.
func (d *NERDetector) detectSpans(text string) ([]nerSpan, error) {
	encoding := d.tokenizer.EncodeWithOptions(text, true, tokenizers.WithReturnOffsets())
	tokenIDs := encoding.IDs
	offsets := encoding.Offsets
	if len(tokenIDs) > nerMaxSeqLen {
		tokenIDs = tokenIDs[:nerMaxSeqLen]
		offsets = offsets[:nerMaxSeqLen]
	}

	inputIDs := make([]int64, len(tokenIDs))
	attentionMask := make([]int64, len(tokenIDs))
	for i := range tokenIDs {
		inputIDs[i] = int64(tokenIDs[i])
		attentionMask[i] = 1
	}
	d.updateInputTensors(inputIDs, attentionMask)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	outputData := d.outputTensor.GetData()
	numTokens := len(tokenIDs)
	if len(offsets) < numTokens {
		numTokens = len(offsets)
	}

	var spans []nerSpan
	var current *nerSpan
	var spanStart, spanEnd uint

	flush := func() {
		if current != nil {
			current.text = strings.TrimSpace(sliceByOffset(text, spanStart, spanEnd))
			if current.text != "" {
				spans = append(spans, *current)
			}
			current = nil
		}
	}

	for i := 0; i < numTokens; i++ {
		startIdx := i * d.numLabels
		endIdx := (i + 1) * d.numLabels
		if endIdx > len(outputData) {
			break
		}
		// Special tokens ([CLS], [SEP], padding) carry zero-width offsets.
		if offsets[i][0] == offsets[i][1] {
			continue
		}
		label, confidence := d.bestLabel(outputData[startIdx:endIdx])
		if confidence < nerMinTokenScore {
			label = "O"
		}

		isInside := strings.HasPrefix(label, "I-")
		baseLabel := strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")

		switch {
		case label == "O":
			flush()
		case isInside && current != nil && current.label == baseLabel:
			spanEnd = offsets[i][1]
			current.confidence = (current.confidence + confidence) / 2
		default:
			flush()
			current = &nerSpan{label: baseLabel, confidence: confidence}
			spanStart = offsets[i][0]
			spanEnd = offsets[i][1]
		}
	}
	flush()

	return spans, nil
}

// bestLabel returns the argmax label for one token's logits along with its
// softmax probability.
func (d *NERDetector) bestLabel(logits []float32) (string, float64) {
	maxLogit := float64(-math.MaxFloat64)
	bestClass := 0
	for j, logit := range logits {
		if float64(logit) > maxLogit {
			maxLogit = float64(logit)
			bestClass = j
		}
	}

	var sum float64
	for _, logit := range logits {
		sum += math.Exp(float64(logit))
	}
	confidence := math.Exp(maxLogit) / sum

	label, ok := d.id2label[fmt.Sprintf("%d", bestClass)]
	if !ok {
		label = "O"
	}
	return label, confidence
}

func sliceByOffset(text string, start, end uint) string {
	if start >= end || end > uint(len(text)) {
		return ""
	}
	return text[start:end]
}

// initializeSession creates the reusable tensors and the inference session.
func (d *NERDetector) initializeSession() error {
	inputShape := onnxruntime.NewShape(1, nerMaxSeqLen)
	inputTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, nerMaxSeqLen))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}

	maskTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, nerMaxSeqLen))
	if err != nil {
		destroyQuietly(inputTensor)
		return fmt.Errorf("failed to create mask tensor: %w", err)
	}

	outputShape := onnxruntime.NewShape(1, nerMaxSeqLen, int64(d.numLabels))
	outputTensor, err := onnxruntime.NewEmptyTensor[float32](outputShape)
	if err != nil {
		destroyQuietly(inputTensor)
		destroyQuietly(maskTensor)
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := onnxruntime.NewAdvancedSession(d.modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]onnxruntime.Value{inputTensor, maskTensor},
		[]onnxruntime.Value{outputTensor},
		nil)
	if err != nil {
		destroyQuietly(inputTensor)
		destroyQuietly(maskTensor)
		destroyQuietly(outputTensor)
		return fmt.Errorf("failed to create session: %w", err)
	}

	d.session = session
	d.inputTensor = inputTensor
	d.maskTensor = maskTensor
	d.outputTensor = outputTensor
	return nil
}

type destroyable interface {
	Destroy() error
}

func destroyQuietly(v destroyable) {
	if err := v.Destroy(); err != nil {
		fmt.Printf("Warning: failed to destroy tensor during cleanup: %v\n", err)
	}
}

// updateInputTensors clears and refills the reusable input tensors.
func (d *NERDetector) updateInputTensors(inputIDs, attentionMask []int64) {
	inputData := d.inputTensor.GetData()
	maskData := d.maskTensor.GetData()

	for i := range inputData {
		inputData[i] = 0
		maskData[i] = 0
	}
	copy(inputData, inputIDs)
	copy(maskData, attentionMask)
}

// Close implements the Generator interface
func (d *NERDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy session: %w", err))
		}
		d.session = nil

		// Tensors exist exactly when the session does.
		for _, t := range []destroyable{d.inputTensor, d.maskTensor, d.outputTensor} {
			if err := t.Destroy(); err != nil {
				errs = append(errs, err)
			}
		}
		d.inputTensor, d.maskTensor, d.outputTensor = nil, nil, nil
	}
	if d.tokenizer != nil {
		if err := d.tokenizer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close tokenizer: %w", err))
		}
		d.tokenizer = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
