package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	order := int64(4711)
	line := formatLine(RowCallEvent{
		CallID:     7,
		Table:      "Tisch 1",
		Row:        "A",
		Article:    "Cola",
		OrderID:    &order,
		Status:     "DELIVERED",
		Action:     "drop",
		OccurredAt: "2026-01-02T03:04:05Z",
	})
	assert.Equal(t,
		"[2026-01-02T03:04:05Z] Call delivered | call_id=7 | table=\"Tisch 1\" | row=\"A\" | article=\"Cola\" | order_id=4711 | action=drop\n",
		line)
}

func TestFormatLineWithoutOrder(t *testing.T) {
	line := formatLine(RowCallEvent{CallID: 1, Status: "CANCELLED", Reason: "cancelled by table"})
	assert.Contains(t, line, "order_id=-")
	assert.Contains(t, line, `reason="cancelled by table"`)
	assert.NotContains(t, line, "action=")
}

func TestHandleMessageAppends(t *testing.T) {
	dir := t.TempDir()
	c := NewConsumer("", dir, nil)

	for _, id := range []int64{1, 2} {
		body, err := json.Marshal(RowCallEvent{CallID: id, Status: "DELIVERED"})
		require.NoError(t, err)
		require.NoError(t, c.handleMessage(body))
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "call_id=1")
	assert.Contains(t, string(data), "call_id=2")
}

func TestHandleMessageRejectsMalformed(t *testing.T) {
	c := NewConsumer("", t.TempDir(), nil)
	assert.Error(t, c.handleMessage([]byte("{not json")))
	assert.Error(t, c.handleMessage([]byte(`{"status":"DELIVERED"}`)))
}
