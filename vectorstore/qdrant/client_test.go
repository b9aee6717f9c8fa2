package qdrant

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/chatcontext/vectorstore"
)

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig(Config{URL: "qdrant.example.io", CollectionName: "kb", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "qdrant.example.io", cfg.Host)
	assert.Equal(t, defaultGRPCPort, cfg.Port)
	assert.True(t, cfg.UseTLS)
	assert.Equal(t, "k", cfg.APIKey)

	cfg, err = parseConfig(Config{URL: "http://localhost:7000", CollectionName: "kb"})
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 7000, cfg.Port)
	assert.False(t, cfg.UseTLS)

	_, err = parseConfig(Config{CollectionName: "kb"})
	assert.Error(t, err)
	_, err = parseConfig(Config{URL: "localhost"})
	assert.Error(t, err)
}

func TestBuildQdrantFilter(t *testing.T) {
	assert.Nil(t, buildQdrantFilter(vectorstore.SearchFilter{}))

	single := buildQdrantFilter(vectorstore.SearchFilter{SourceID: "src-1"})
	require.Len(t, single.Must, 1)
	assert.Equal(t, "source_id", single.Must[0].GetField().GetKey())
	assert.Equal(t, "src-1", single.Must[0].GetField().GetMatch().GetKeyword())

	many := buildQdrantFilter(vectorstore.SearchFilter{SourceID: "ignored", SourceIDs: []string{"a", "b"}})
	require.Len(t, many.Must, 1)
	assert.Equal(t, []string{"a", "b"}, many.Must[0].GetField().GetMatch().GetKeywords().GetStrings())

	meta := buildQdrantFilter(vectorstore.SearchFilter{Metadata: map[string]any{"lang": "en"}})
	require.Len(t, meta.Must, 1)
	assert.Equal(t, "lang", meta.Must[0].GetField().GetKey())
}

func TestBuildMatchCondition(t *testing.T) {
	assert.Equal(t, int64(3), buildMatchCondition("n", 3).GetField().GetMatch().GetInteger())
	assert.Equal(t, int64(4), buildMatchCondition("n", int64(4)).GetField().GetMatch().GetInteger())
	assert.True(t, buildMatchCondition("b", true).GetField().GetMatch().GetBoolean())
	assert.Equal(t, "1.5", buildMatchCondition("f", 1.5).GetField().GetMatch().GetKeyword())
}

func TestResultFromPoint(t *testing.T) {
	point := &qdrant.ScoredPoint{
		Id:    qdrant.NewIDUUID("7f1c2b9e-0000-4000-8000-000000000001"),
		Score: 0.83,
		Payload: map[string]*qdrant.Value{
			"content":     qdrant.NewValueString("Refunds are processed within 5 days."),
			"source_id":   qdrant.NewValueString("src-1"),
			"document_id": qdrant.NewValueString("doc-9"),
			"page":        qdrant.NewValueInt(4),
		},
	}

	res := resultFromPoint(point)
	assert.Equal(t, "7f1c2b9e-0000-4000-8000-000000000001", res.ID)
	assert.InDelta(t, 0.83, res.Score, 1e-6)
	assert.Equal(t, "Refunds are processed within 5 days.", res.Content)
	assert.Equal(t, "src-1", res.SourceID)
	assert.Equal(t, "doc-9", res.DocumentID)
	assert.Equal(t, int64(4), res.Metadata["page"])

	numeric := resultFromPoint(&qdrant.ScoredPoint{Id: qdrant.NewIDNum(42)})
	assert.Equal(t, "42", numeric.ID)
}

func TestExtractValue(t *testing.T) {
	assert.Nil(t, extractValue(nil))
	assert.Equal(t, "s", extractValue(qdrant.NewValueString("s")))
	assert.Equal(t, 2.5, extractValue(qdrant.NewValueDouble(2.5)))
	assert.Equal(t, true, extractValue(qdrant.NewValueBool(true)))
	assert.Nil(t, extractValue(qdrant.NewValueNull()))
}
