package ai

import (
	"context"
	"errors"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// VertexEmbedder produces text embeddings through the Vertex AI prediction
// endpoint. The default model emits 768-dimension vectors, matching the
// portal_messages embedding column.
type VertexEmbedder struct {
	client   *aiplatform.PredictionClient
	endpoint string
}

func NewVertexEmbedder(ctx context.Context, projectID, location, modelName string) (*VertexEmbedder, error) {
	if modelName == "" {
		modelName = "text-embedding-004"
	}

	c, err := aiplatform.NewPredictionClient(ctx,
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", location)))
	if err != nil {
		return nil, err
	}

	return &VertexEmbedder{
		client: c,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s",
			projectID, location, modelName),
	}, nil
}

func (e *VertexEmbedder) Close() error { return e.client.Close() }

func (e *VertexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	inst, err := structpb.NewValue(map[string]interface{}{"content": text})
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:  e.endpoint,
		Instances: []*structpb.Value{inst},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.GetPredictions()) == 0 {
		return nil, errors.New("empty embedding response")
	}

	values := resp.GetPredictions()[0].GetStructValue().
		GetFields()["embeddings"].GetStructValue().
		GetFields()["values"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, errors.New("embedding response has no values")
	}

	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v.GetNumberValue())
	}
	return out, nil
}
