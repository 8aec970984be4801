package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Trendyol/go-triton-client/base"
	tritonGrpc "github.com/Trendyol/go-triton-client/client/grpc"

	"homeguard/internal/config"
	"homeguard/internal/stream"
)

// TritonDetector runs subject detection against a Triton inference server.
// It only yields bounding boxes; identity resolution is a separate
// collaborator, so every detection comes back Unidentified.
type TritonDetector struct {
	client    base.Client
	modelName string
	labelMap  map[int]string
}

func NewTritonDetector(ctx context.Context, conf config.TritonConfig) (*TritonDetector, error) {
	client, err := tritonGrpc.NewClient(
		conf.ServerAddr,
		false, // verbose logging
		30,    // connection timeout in seconds
		30,    // network timeout in seconds
		false, // use ssl
		true,  // insecure connection
		nil,   // existing grpc connection
		nil,   // logger
	)
	if err != nil {
		return nil, err
	}

	d := &TritonDetector{
		client:    client,
		modelName: conf.ModelName,
		labelMap:  parseLabelMap(conf.Labels),
	}
	if err := d.checkReady(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func parseLabelMap(labels string) map[int]string {
	labelMap := make(map[int]string)
	for i, label := range strings.Split(labels, ",") {
		labelMap[i] = strings.TrimSpace(label)
	}
	return labelMap
}

func (d *TritonDetector) checkReady(ctx context.Context) error {
	if isLive, err := d.client.IsServerLive(ctx, nil); err != nil {
		return err
	} else if !isLive {
		return errors.New("triton server is not live")
	}

	if isReady, err := d.client.IsServerReady(ctx, nil); err != nil {
		return err
	} else if !isReady {
		return errors.New("triton server is not ready")
	}

	if isReady, err := d.client.IsModelReady(ctx, d.modelName, "1", nil); err != nil {
		return err
	} else if !isReady {
		return fmt.Errorf("triton model %s is not ready", d.modelName)
	}

	return nil
}

func (d *TritonDetector) Detect(ctx context.Context, frame stream.Frame) ([]Detection, error) {
	frameInput := tritonGrpc.NewInferInput("FRAME", "BYTES", []int64{int64(frame.Height), int64(frame.Width), 3}, nil)
	if err := frameInput.SetData(frame.Data, true); err != nil {
		return nil, fmt.Errorf("failed to set FRAME input data: %v", err)
	}
	frameInput.SetDatatype("UINT8")

	outputs := []base.InferOutput{
		tritonGrpc.NewInferOutput("DETECTIONS", map[string]any{"binary_data": false}),
	}

	response, err := d.client.Infer(
		ctx,
		d.modelName,
		"1",
		[]base.InferInput{frameInput},
		outputs,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %v", err)
	}

	raw, err := response.AsFloat32Slice("DETECTIONS")
	if err != nil {
		return nil, fmt.Errorf("failed to get detection data: %v", err)
	}

	var detections []Detection
	// raw: float32 values with shape [N, 6] containing [x1, y1, x2, y2, confidence, class_id]
	for i := 0; i+5 < len(raw); i += 6 {
		classID := int(raw[i+5])
		if name, exists := d.labelMap[classID]; !exists || name == "" {
			continue
		}

		detections = append(detections, Detection{
			Box: Box{
				X1: int(raw[i]),
				Y1: int(raw[i+1]),
				X2: int(raw[i+2]),
				Y2: int(raw[i+3]),
			},
			Identity: Unidentified{},
		})
	}

	return detections, nil
}
