package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/events"
)

func publish(t *testing.T, bus interfaces.EventService, eventType interfaces.EventType, payload map[string]interface{}) {
	t.Helper()
	require.NoError(t, bus.PublishSync(context.Background(), interfaces.Event{Type: eventType, Payload: payload}))
}

func TestStatusFollowsPipelineEvents(t *testing.T) {
	logger := arbor.NewLogger()
	bus := events.NewService(logger)
	defer bus.Close()

	svc := NewService(logger)
	require.NoError(t, svc.SubscribeToPipelineEvents(bus))
	assert.Equal(t, models.RunStageIdle, svc.GetStatus().State)

	publish(t, bus, interfaces.EventPipelineStarted, map[string]interface{}{"run_id": "run_1"})
	assert.Equal(t, "run_1", svc.GetStatus().ActiveRunID)

	publish(t, bus, interfaces.EventStageChanged, map[string]interface{}{"run_id": "run_1", "stage": string(models.RunStageConvertPending)})
	publish(t, bus, interfaces.EventReportConverted, map[string]interface{}{"report_id": "a"})
	publish(t, bus, interfaces.EventReportConverted, map[string]interface{}{"report_id": "b"})
	publish(t, bus, interfaces.EventReportConversionFailed, map[string]interface{}{"report_id": "c"})

	current := svc.GetStatus()
	assert.Equal(t, models.RunStageConvertPending, current.State)
	assert.Equal(t, 2, current.Converted)
	assert.Equal(t, 1, current.Failed)

	report := &models.RunReport{RunID: "run_1", Converted: 2, Failed: 1}
	publish(t, bus, interfaces.EventPipelineCompleted, map[string]interface{}{"run_id": "run_1", "report": report})

	final := svc.GetStatus()
	assert.Equal(t, models.RunStageIdle, final.State)
	assert.Empty(t, final.ActiveRunID)
	require.NotNil(t, final.LastRun)
	assert.Equal(t, 2, final.LastRun.Converted)

	report.Converted = 99
	assert.Equal(t, 2, svc.GetStatus().LastRun.Converted)
}
